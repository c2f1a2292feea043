// Package jsonpath resolves simple JSONPath expressions against JSON
// documents using gjson.
//
// Only the dotted and bracketed subset is supported: $.a.b, $['a'].b,
// $.list[0].c. Expressions that do not start with $ are passed to gjson
// unchanged, so native gjson paths such as "meta.ts" work as well.
package jsonpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrEmptyPath is returned for an empty expression.
	ErrEmptyPath = errors.New("jsonpath: empty expression")

	// ErrNotFound is returned when the path does not resolve.
	ErrNotFound = errors.New("jsonpath: path not found")
)

// Path is a compiled expression.
type Path struct {
	expr  string
	gpath string
}

// Compile converts expr to its gjson form.
func Compile(expr string) (Path, error) {
	if strings.TrimSpace(expr) == "" {
		return Path{}, ErrEmptyPath
	}
	return Path{expr: expr, gpath: toGjson(expr)}, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(expr string) Path {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the original expression.
func (p Path) String() string {
	return p.expr
}

// GJSON returns the equivalent gjson path.
func (p Path) GJSON() string {
	return p.gpath
}

// Get resolves the path in doc. The result's Exists method reports whether
// anything matched.
func (p Path) Get(doc []byte) gjson.Result {
	return gjson.GetBytes(doc, p.gpath)
}

// Extract returns the value at expr as a string. JSON null is returned as
// "null".
func Extract(doc []byte, expr string) (string, error) {
	p, err := Compile(expr)
	if err != nil {
		return "", err
	}
	r := p.Get(doc)
	if !r.Exists() {
		return "", fmt.Errorf("%s: %w", expr, ErrNotFound)
	}
	if r.Type == gjson.Null {
		return "null", nil
	}
	return r.String(), nil
}

func toGjson(path string) string {
	if !strings.HasPrefix(path, "$") {
		return path
	}

	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	// $['name'] and $["name"]
	for _, q := range []string{"'", `"`} {
		path = strings.ReplaceAll(path, "["+q, ".")
		path = strings.ReplaceAll(path, q+"]", "")
	}

	// [n] -> .n
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")

	return strings.TrimPrefix(path, ".")
}
