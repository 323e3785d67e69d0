package owa

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"owascrape/lib/htmlutil"
	"reflect"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"go.opentelemetry.io/otel/codes"
)

const jsonResultsKey = "JsonResults"

var astPkgPath = reflect.TypeOf(ast.Program{}).PkgPath()

type visitedNode struct {
	typ  reflect.Type
	addr uintptr
}

// collectProperties appends every keyed object literal property reachable
// from v. goja/ast has no visitor, so the tree is walked through its
// exported fields.
func collectProperties(v reflect.Value, seen map[visitedNode]bool, out *[]*ast.PropertyKeyed) {
	switch v.Kind() {
	case reflect.Interface:
		if !v.IsNil() {
			collectProperties(v.Elem(), seen, out)
		}
	case reflect.Pointer:
		if v.IsNil() || v.Type().Elem().PkgPath() != astPkgPath {
			return
		}
		node := visitedNode{typ: v.Type(), addr: v.Pointer()}
		if seen[node] {
			return
		}
		seen[node] = true
		if prop, ok := v.Interface().(*ast.PropertyKeyed); ok {
			*out = append(*out, prop)
		}
		collectProperties(v.Elem(), seen, out)
	case reflect.Struct:
		if v.Type().PkgPath() != astPkgPath {
			return
		}
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				collectProperties(v.Field(i), seen, out)
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			collectProperties(v.Index(i), seen, out)
		}
	}
}

func propertyName(key ast.Expression) string {
	switch key := key.(type) {
	case *ast.StringLiteral:
		return key.Value.String()
	case *ast.Identifier:
		return key.Name.String()
	}
	return ""
}

// ExtractJsonResults parses a piece of javascript and returns the JSON
// document held in the string value of its JsonResults property. When the
// property shows up more than once the last one in the source wins.
func ExtractJsonResults(script string) (json.RawMessage, error) {
	program, err := parser.ParseFile(nil, "", script, 0)
	if err != nil {
		return nil, fmt.Errorf("owa: parse script: %w", err)
	}

	var props []*ast.PropertyKeyed
	collectProperties(reflect.ValueOf(program), map[visitedNode]bool{}, &props)

	var payload *ast.StringLiteral
	for _, prop := range props {
		if propertyName(prop.Key) != jsonResultsKey {
			continue
		}
		value, ok := prop.Value.(*ast.StringLiteral)
		if !ok {
			continue
		}
		if payload == nil || value.Idx0() > payload.Idx0() {
			payload = value
		}
	}
	if payload == nil {
		return nil, fmt.Errorf("owa: could not find JsonResults in script")
	}

	decoded := payload.Value.String()
	if !json.Valid([]byte(decoded)) {
		return nil, fmt.Errorf("owa: JsonResults does not hold valid json")
	}
	return json.RawMessage(decoded), nil
}

type jsonResults struct {
	Output []map[string]any `json:"Output"`
}

// GetAccountIdentity scrapes the identity of the logged in account from the
// preloaded results on the ECP home page.
func GetAccountIdentity(ctx context.Context, s *Session, opts ...RequestOption) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "GetAccountIdentity")
	defer span.End()

	fail := func(err error) (map[string]any, error) {
		s.tel.ReportBroken(report_get_account_identity, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req := s.Http.R().SetContext(ctx)
	applyOptions(req, opts)
	res, err := req.Get(pathHomePage)
	if err != nil {
		return fail(fmt.Errorf("owa: fetch home page: %w", err))
	}
	if res.IsError() {
		return fail(fmt.Errorf("owa: fetch home page: unexpected status %s", res.Status()))
	}

	doc, err := parseHtml(res.Body())
	if err != nil {
		return fail(fmt.Errorf("owa: parse home page: %w", err))
	}
	scripts := doc.Find(`script[type="text/javascript"]`).Nodes
	if len(scripts) == 0 {
		return fail(fmt.Errorf("owa: home page has no inline scripts"))
	}
	script := html.UnescapeString(htmlutil.GetText(scripts[len(scripts)-1]))

	payload, err := ExtractJsonResults(script)
	if err != nil {
		return fail(err)
	}
	var results jsonResults
	err = json.Unmarshal(payload, &results)
	if err != nil {
		return fail(fmt.Errorf("owa: unmarshal JsonResults: %w", err))
	}
	if len(results.Output) == 0 {
		return fail(fmt.Errorf("owa: JsonResults has no output"))
	}
	return results.Output[0], nil
}
