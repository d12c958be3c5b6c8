// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command verify-error-mapping fails when a control API file other than
// errors.go maps errors to HTTP failure statuses on its own.
package main

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"
)

func main() {
	path := "./internal/api"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	violations, err := Analyze(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "ad-hoc error mapping violations found:")
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, v)
		}
		os.Exit(1)
	}
}

// Analyze loads pattern and reports every failure status constant and
// RenderError reference outside errors.go.
func Analyze(pattern string) ([]string, error) {
	cfg := &packages.Config{
		Mode: packages.NeedSyntax | packages.NeedFiles | packages.NeedCompiledGoFiles | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedName,
		Dir:  ".",
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	var violations []string
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			return nil, fmt.Errorf("package %s: %v", pkg.PkgPath, pkg.Errors[0])
		}
		for _, file := range pkg.Syntax {
			filename := pkg.Fset.Position(file.Pos()).Filename
			if strings.HasSuffix(filename, "_test.go") || filepath.Base(filename) == "errors.go" {
				continue
			}
			fset := pkg.Fset

			ast.Inspect(file, func(n ast.Node) bool {
				sel, ok := n.(*ast.SelectorExpr)
				if !ok {
					return true
				}
				if name, ok := failureStatus(sel, pkg.TypesInfo); ok {
					violations = append(violations, formatViolation(fset, sel.Pos(), fmt.Sprintf("forbidden failure status http.%s (use writeError)", name)))
				}
				if isRenderError(sel, pkg.TypesInfo) {
					violations = append(violations, formatViolation(fset, sel.Pos(), "forbidden use of session.RenderError (use writeError)"))
				}
				return true
			})
		}
	}
	return violations, nil
}

func formatViolation(fset *token.FileSet, pos token.Pos, msg string) string {
	p := fset.Position(pos)
	filename := p.Filename
	if rel, err := filepath.Rel(".", filename); err == nil {
		filename = rel
	}
	return fmt.Sprintf("%s:%d: %s", filename, p.Line, msg)
}

// failureStatus matches net/http Status constants of 400 and above.
func failureStatus(sel *ast.SelectorExpr, info *types.Info) (string, bool) {
	c, ok := info.ObjectOf(sel.Sel).(*types.Const)
	if !ok || c.Pkg() == nil || c.Pkg().Path() != "net/http" || !strings.HasPrefix(c.Name(), "Status") {
		return "", false
	}
	v, exact := constant.Int64Val(c.Val())
	if !exact || v < 400 {
		return "", false
	}
	return c.Name(), true
}

func isRenderError(sel *ast.SelectorExpr, info *types.Info) bool {
	obj, ok := info.ObjectOf(sel.Sel).(*types.TypeName)
	if !ok || obj.Pkg() == nil {
		return false
	}
	return strings.HasSuffix(obj.Pkg().Path(), "internal/session") && obj.Name() == "RenderError"
}
