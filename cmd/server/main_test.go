package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactDBURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "postgres with password", in: "postgres://user:secret@db:5432/links?sslmode=disable", want: "postgres://user:xxxxx@db:5432/links?sslmode=disable"},
		{name: "redis password only", in: "redis://:secret@cache:6379/0", want: "redis://:xxxxx@cache:6379/0"},
		{name: "no credentials", in: "redis://localhost:6379/0", want: "redis://localhost:6379/0"},
		{name: "user without password", in: "postgres://user@db/links", want: "postgres://user@db/links"},
		{name: "sqlite path", in: "file:links.db", want: "file:links.db"},
		{name: "empty", in: "", want: ""},
		{name: "unparseable", in: "postgres://user:secret@db/%zz", want: "********"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, redactDBURL(tt.in))
		})
	}
}
