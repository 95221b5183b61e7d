// Package hubgen generates MethodTable registrations for hub types, so hubs can be served without reflection.
package hubgen

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/dave/jennifer/jen"
	"github.com/philippseith/wsmanager"
)

const wsmanagerPath = "github.com/philippseith/wsmanager"

// Result is the outcome of Generate
type Result struct {
	File *jen.File
	// Hubs are the hub types Methods was generated for
	Hubs []string
	// Skipped lists the methods with signatures the generator does not support, as "Hub.Method: reason".
	// No Methods is generated for their hubs, so they are served by reflection.
	Skipped []string
}

// Generate parses the go source file and generates a Methods(*wsmanager.MethodTable) implementation
// for every struct type in it which embeds wsmanager.Hub as its first field.
// src is passed to go/parser.ParseFile, so it may be nil to read fileName.
func Generate(fileName string, src interface{}) (*Result, error) {
	fSet := token.NewFileSet()
	file, err := parser.ParseFile(fSet, fileName, src, parser.AllErrors)
	if err != nil {
		return nil, err
	}
	g := &generator{
		hubs:    make(map[string]*hubInfo),
		imports: importNames(file),
	}
	// Methods may be declared before their type
	ast.Walk(hubVisitor{g}, file)
	ast.Walk(methodVisitor{g}, file)
	return g.generate(file.Name.Name), nil
}

type generator struct {
	hubs    map[string]*hubInfo
	imports map[string]string
}

type hubInfo struct {
	funcDecls []*ast.FuncDecl
}

type hubVisitor struct {
	g *generator
}

func (v hubVisitor) Visit(node ast.Node) ast.Visitor {
	if typeSpec, ok := node.(*ast.TypeSpec); ok && embedsHub(typeSpec) {
		if _, ok := v.g.hubs[typeSpec.Name.Name]; !ok {
			v.g.hubs[typeSpec.Name.Name] = &hubInfo{}
		}
	}
	return v
}

func embedsHub(typeSpec *ast.TypeSpec) bool {
	structType, ok := typeSpec.Type.(*ast.StructType)
	if !ok || len(structType.Fields.List) == 0 || len(structType.Fields.List[0].Names) > 0 {
		return false
	}
	switch fieldType := structType.Fields.List[0].Type.(type) {
	case *ast.Ident:
		return fieldType.Name == "Hub"
	case *ast.SelectorExpr:
		return fieldType.Sel.Name == "Hub"
	}
	return false
}

type methodVisitor struct {
	g *generator
}

func (v methodVisitor) Visit(node ast.Node) ast.Visitor {
	funcDecl, ok := node.(*ast.FuncDecl)
	if !ok || funcDecl.Recv == nil || len(funcDecl.Recv.List) != 1 {
		return v
	}
	if !funcDecl.Name.IsExported() || wsmanager.IsHubBaseMethod(funcDecl.Name.Name) {
		return v
	}
	recvType := funcDecl.Recv.List[0].Type
	if star, ok := recvType.(*ast.StarExpr); ok {
		recvType = star.X
	}
	if ident, ok := recvType.(*ast.Ident); ok {
		if hubInfo, ok := v.g.hubs[ident.Name]; ok {
			hubInfo.funcDecls = append(hubInfo.funcDecls, funcDecl)
		}
	}
	return v
}

func (g *generator) generate(packageName string) *Result {
	f := jen.NewFile(packageName)
	f.HeaderComment("Code generated by hubgen. DO NOT EDIT.")
	result := &Result{File: f}
	hubNames := make([]string, 0, len(g.hubs))
	for hub := range g.hubs {
		hubNames = append(hubNames, hub)
	}
	sort.Strings(hubNames)
	for _, hub := range hubNames {
		registrations := make([]jen.Code, 0, len(g.hubs[hub].funcDecls))
		skipped := len(result.Skipped)
		for _, funcDecl := range g.hubs[hub].funcDecls {
			registration, err := g.registration(funcDecl)
			if err != nil {
				result.Skipped = append(result.Skipped, fmt.Sprintf("%v.%v: %v", hub, funcDecl.Name.Name, err))
				continue
			}
			registrations = append(registrations, registration)
		}
		if len(result.Skipped) > skipped {
			// hubs with skipped methods stay on reflection
			continue
		}
		f.Comment(fmt.Sprintf("Methods registers the hub methods of %v", hub))
		f.Func().Params(jen.Id("h").Op("*").Id(hub)).Id("Methods").
			Params(jen.Id("t").Op("*").Qual(wsmanagerPath, "MethodTable")).
			Block(registrations...)
		result.Hubs = append(result.Hubs, hub)
	}
	return result
}

// registration generates the FuncN or ActionN call for one hub method
func (g *generator) registration(funcDecl *ast.FuncDecl) (jen.Code, error) {
	params := fieldTypes(funcDecl.Type.Params)
	passCtx := len(params) > 0 && g.isContext(params[0])
	if passCtx {
		params = params[1:]
	}
	if len(params) > 3 {
		return nil, fmt.Errorf("%d parameters, at most 3 are supported", len(params))
	}
	lambdaParams := []jen.Code{jen.Id("ctx").Qual("context", "Context")}
	callArgs := make([]jen.Code, 0, len(params)+1)
	if passCtx {
		callArgs = append(callArgs, jen.Id("ctx"))
	}
	for i, param := range params {
		if _, ok := param.(*ast.Ellipsis); ok {
			return nil, fmt.Errorf("variadic parameters are not supported")
		}
		paramType, err := g.typeCode(param)
		if err != nil {
			return nil, err
		}
		name := "p" + strconv.Itoa(i)
		lambdaParams = append(lambdaParams, jen.Id(name).Add(paramType))
		callArgs = append(callArgs, jen.Id(name))
	}
	call := jen.Id("h").Dot(funcDecl.Name.Name).Call(callArgs...)

	results := fieldTypes(funcDecl.Type.Results)
	switch {
	case len(results) == 0:
		return g.register("Action", funcDecl.Name.Name, len(params), lambdaParams, jen.Error(),
			call, jen.Return(jen.Nil())), nil
	case len(results) == 1 && isError(results[0]):
		return g.register("Action", funcDecl.Name.Name, len(params), lambdaParams, jen.Error(),
			jen.Return(call)), nil
	case len(results) == 1:
		if _, ok := results[0].(*ast.ChanType); ok {
			return nil, fmt.Errorf("channel results are only supported by reflection")
		}
		resultType, err := g.typeCode(results[0])
		if err != nil {
			return nil, err
		}
		return g.register("Func", funcDecl.Name.Name, len(params), lambdaParams,
			jen.Parens(jen.List(resultType, jen.Error())),
			jen.Return(call, jen.Nil())), nil
	case len(results) == 2 && isError(results[1]):
		if _, ok := results[0].(*ast.ChanType); ok {
			return nil, fmt.Errorf("channel results are only supported by reflection")
		}
		resultType, err := g.typeCode(results[0])
		if err != nil {
			return nil, err
		}
		return g.register("Func", funcDecl.Name.Name, len(params), lambdaParams,
			jen.Parens(jen.List(resultType, jen.Error())),
			jen.Return(call)), nil
	default:
		return nil, fmt.Errorf("%d results, supported are none, error, value or value and error", len(results))
	}
}

func (g *generator) register(kind string, name string, arity int, params []jen.Code, results jen.Code, body ...jen.Code) jen.Code {
	return jen.Qual(wsmanagerPath, kind+strconv.Itoa(arity)).Call(
		jen.Id("t"),
		jen.Lit(name),
		jen.Func().Params(params...).Add(results).Block(body...))
}

// fieldTypes flattens a field list, so `a, b int` results in two types
func fieldTypes(fields *ast.FieldList) []ast.Expr {
	if fields == nil {
		return nil
	}
	types := make([]ast.Expr, 0, len(fields.List))
	for _, field := range fields.List {
		n := len(field.Names)
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			types = append(types, field.Type)
		}
	}
	return types
}

func isError(expr ast.Expr) bool {
	ident, ok := expr.(*ast.Ident)
	return ok && ident.Name == "error"
}

func (g *generator) isContext(expr ast.Expr) bool {
	selector, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := selector.X.(*ast.Ident)
	return ok && g.imports[pkg.Name] == "context" && selector.Sel.Name == "Context"
}

// typeCode converts a type expression of the parsed file into jen code, qualifying imported types
func (g *generator) typeCode(expr ast.Expr) (*jen.Statement, error) {
	switch t := expr.(type) {
	case *ast.Ident:
		return jen.Id(t.Name), nil
	case *ast.SelectorExpr:
		pkg, ok := t.X.(*ast.Ident)
		if !ok {
			return nil, fmt.Errorf("unsupported type %T", t.X)
		}
		importPath, ok := g.imports[pkg.Name]
		if !ok {
			return nil, fmt.Errorf("unknown package %v", pkg.Name)
		}
		return jen.Qual(importPath, t.Sel.Name), nil
	case *ast.StarExpr:
		elem, err := g.typeCode(t.X)
		if err != nil {
			return nil, err
		}
		return jen.Op("*").Add(elem), nil
	case *ast.ArrayType:
		elem, err := g.typeCode(t.Elt)
		if err != nil {
			return nil, err
		}
		if t.Len == nil {
			return jen.Index().Add(elem), nil
		}
		lit, ok := t.Len.(*ast.BasicLit)
		if !ok {
			return nil, fmt.Errorf("unsupported array length %T", t.Len)
		}
		return jen.Index(jen.Id(lit.Value)).Add(elem), nil
	case *ast.MapType:
		key, err := g.typeCode(t.Key)
		if err != nil {
			return nil, err
		}
		value, err := g.typeCode(t.Value)
		if err != nil {
			return nil, err
		}
		return jen.Map(key).Add(value), nil
	case *ast.InterfaceType:
		if t.Methods != nil && len(t.Methods.List) > 0 {
			return nil, fmt.Errorf("only empty interfaces are supported")
		}
		return jen.Interface(), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", expr)
	}
}

var versionSuffix = regexp.MustCompile(`^v[0-9]+$`)

// importNames maps the names under which packages are imported to their paths
func importNames(file *ast.File) map[string]string {
	names := make(map[string]string, len(file.Imports))
	for _, imp := range file.Imports {
		importPath, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if imp.Name != nil {
			names[imp.Name.Name] = importPath
			continue
		}
		name := path.Base(importPath)
		if versionSuffix.MatchString(name) {
			name = path.Base(path.Dir(importPath))
		}
		names[name] = importPath
	}
	return names
}
