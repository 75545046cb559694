// Package accessor renders the C# data-access stubs and the routed Web API
// controller stubs for stored routines and for table setters.
package accessor

import (
	"fmt"
	"strings"

	"github.com/vitebski/scriptdb/internal/fragment"
	"github.com/vitebski/scriptdb/internal/merge"
	"github.com/vitebski/scriptdb/internal/naming"
	"github.com/vitebski/scriptdb/internal/typemap"
	"github.com/vitebski/scriptdb/pkg/models"
)

// Shape is the return shape of a generated stub.
type Shape int

const (
	ShapeVoid Shape = iota
	ShapeTabular
	ShapeObject
)

// ReturnType is the C# return type of the shape.
func (s Shape) ReturnType() string {
	switch s {
	case ShapeTabular:
		return "DataTable"
	case ShapeObject:
		return "JObject"
	default:
		return "void"
	}
}

// Parameter is a routine parameter resolved to its stub form.
type Parameter struct {
	CatalogName    string
	Name           string
	TargetType     string
	DefaultLiteral string
	Skipped        bool
}

// Accessor is the synthesized pair of stubs for one routine or table.
type Accessor struct {
	Routine    string
	Method     string
	Verb       naming.Verb
	Shape      Shape
	Route      string
	Parameters []Parameter
	DataAccess string
	Controller string
}

// Fragments returns the accessor text bound for its streams.
func (a *Accessor) Fragments() []models.Fragment {
	return []models.Fragment{
		{Stream: models.DataAccess, Text: a.DataAccess},
		{Stream: models.Controller, Text: a.Controller},
	}
}

// Synthesizer renders accessors. Skip and replacement fields are matched
// against stub parameter names (camel case, no sigil).
type Synthesizer struct {
	PluralExceptions     []string
	SkipFields           []string
	ReplacementFields    map[string]string
	RouteSuffixes        []string
	NamespaceRules       []naming.NamespaceRule
	GetterNamespace      string
	SetterNamespace      string
	TableSetterNamespace string
}

// Routine synthesizes the stubs for a stored routine.
func (s *Synthesizer) Routine(r *models.RoutineDefinition) (*Accessor, error) {
	verb := naming.ClassifyVerb(r.Name)
	if verb == naming.VerbUnclassified {
		return nil, fmt.Errorf("%w: %s", models.ErrUnclassifiedRoutine, r.Name)
	}

	params, err := s.parameters(r)
	if err != nil {
		return nil, err
	}

	a := &Accessor{
		Routine:    r.Name,
		Method:     naming.PutMethodName(r.Name),
		Verb:       verb,
		Shape:      ShapeVoid,
		Parameters: params,
	}

	if verb == naming.VerbGet {
		a.Shape = ShapeObject
		if naming.IsPluralShaped(r.Name, s.PluralExceptions) {
			a.Shape = ShapeTabular
		}
		a.Route = "/" + naming.RouteResource(r.Name, a.Shape == ShapeTabular, s.RouteSuffixes) +
			naming.RouteTokens(parameterNames(params), s.SkipFields)
		a.DataAccess = s.getDataAccess(a)
		a.Controller = s.getController(a)
		return a, nil
	}

	a.Route = r.Name
	a.DataAccess = s.setDataAccess(a)
	a.Controller = s.setController(a)
	return a, nil
}

func (s *Synthesizer) parameters(r *models.RoutineDefinition) ([]Parameter, error) {
	params := make([]Parameter, 0, len(r.Parameters))
	for _, p := range r.Parameters {
		mapping, err := typemap.Resolve(p.DataType)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		name := naming.ToParameterName(p.Name)
		params = append(params, Parameter{
			CatalogName:    p.Name,
			Name:           name,
			TargetType:     mapping.TargetType,
			DefaultLiteral: mapping.DefaultLiteral,
			Skipped:        contains(s.SkipFields, name),
		})
	}
	return params, nil
}

func parameterNames(params []Parameter) []string {
	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.Name)
	}
	return names
}

// Typed renders every parameter as "type name".
func (a *Accessor) Typed() string {
	l := fragment.NewList("", fragment.Comma)
	for _, p := range a.Parameters {
		l.Add(p.TargetType + " " + p.Name)
	}
	return l.String()
}

// Signature renders the stub signature: typed parameters outside the skip set.
func (a *Accessor) Signature() string {
	l := fragment.NewList("", fragment.Comma)
	for _, p := range a.Parameters {
		if !p.Skipped {
			l.Add(p.TargetType + " " + p.Name)
		}
	}
	return l.String()
}

// CallThrough renders the argument names passed from controller to data access.
func (a *Accessor) CallThrough() string {
	l := fragment.NewList("", fragment.Comma)
	for _, p := range a.Parameters {
		if !p.Skipped {
			l.Add(p.Name)
		}
	}
	return l.String()
}

// Bindings renders one SqlParameter per catalog parameter. Skipped
// parameters are bound to their replacement expression, or to their
// default literal when none is configured.
func (s *Synthesizer) Bindings(a *Accessor) string {
	l := fragment.NewList("\t\t", fragment.CommaNewLine)
	for _, p := range a.Parameters {
		value := p.Name
		if replacement, ok := s.ReplacementFields[p.Name]; ok {
			value = replacement
		} else if p.Skipped {
			value = p.DefaultLiteral
		}
		l.Add(sqlParameter(p.CatalogName, value))
	}
	return l.String()
}

func sqlParameter(catalogName, value string) string {
	return "new SqlParameter(" + quote(catalogName) + ", " + value + ")"
}

// sqlParameterArray renders the optional trailing SqlParameter[] argument.
func sqlParameterArray(bindings string) string {
	if bindings == "" {
		return ""
	}
	return ", new SqlParameter[] {\n" + bindings + "\n\t}"
}

// DocBlock renders the summary comment preceding every stub.
func DocBlock(verb naming.Verb, subject string) string {
	title := naming.SplitWords(subject)
	var b strings.Builder
	b.WriteString("/// <summary>\n")
	b.WriteString("/// " + naming.Capitalize(verb.String()) + "s " + title + "\n")
	b.WriteString("/// </summary>\n")
	if verb == naming.VerbGet {
		b.WriteString("/// <returns>" + title + "</returns>\n")
	}
	return b.String()
}

func (s *Synthesizer) getDataAccess(a *Accessor) string {
	call := "DataAccess.GetDataTable(" + quote(a.Routine) + sqlParameterArray(s.Bindings(a)) + ")"
	if a.Shape == ShapeObject {
		call = "Utility.DataTableRowToObject(" + call + ")"
	}

	var b strings.Builder
	b.WriteString(DocBlock(a.Verb, naming.StripVerb(a.Routine)))
	b.WriteString("internal static " + a.Shape.ReturnType() + " " + a.Method + "(" + a.Signature() + ")\n")
	b.WriteString("{\n")
	b.WriteString("\treturn " + call + ";\n")
	b.WriteString("}\n\n")
	return b.String()
}

func (s *Synthesizer) getController(a *Accessor) string {
	namespace := naming.ModelNamespace(a.Routine, s.NamespaceRules, s.GetterNamespace)

	var b strings.Builder
	b.WriteString(DocBlock(a.Verb, naming.StripVerb(a.Routine)))
	b.WriteString("[Route(" + quote(a.Route) + ")]\n")
	b.WriteString("public " + a.Shape.ReturnType() + " " + a.Method + "(" + a.Signature() + ")\n")
	b.WriteString("{\n")
	b.WriteString("\treturn " + namespace + "." + a.Method + "(" + a.CallThrough() + ");\n")
	b.WriteString("}\n\n")
	return b.String()
}

func (s *Synthesizer) setDataAccess(a *Accessor) string {
	var b strings.Builder
	b.WriteString(DocBlock(a.Verb, naming.StripVerb(a.Routine)))
	b.WriteString("internal static void " + a.Method + "(" + a.Signature() + ")\n")
	b.WriteString("{\n")
	b.WriteString("\tDataAccess.SetData(" + quote(a.Routine) + sqlParameterArray(s.Bindings(a)) + ");\n")
	b.WriteString("}\n\n")
	return b.String()
}

// setController binds the whole request body and reads each field from it,
// falling back to the field type's default.
func (s *Synthesizer) setController(a *Accessor) string {
	payload := naming.PayloadName(a.Routine)

	var b strings.Builder
	b.WriteString(DocBlock(a.Verb, naming.StripVerb(a.Routine)))
	b.WriteString("[Route(" + quote(a.Route) + ")]\n")
	b.WriteString("public void " + a.Method + "([FromBody] JObject " + payload + ")\n")
	b.WriteString("{\n")
	for _, p := range a.Parameters {
		if p.Skipped {
			continue
		}
		b.WriteString("\t" + p.TargetType + " " + p.Name + " = " + payload + "[" + quote(p.Name) + "]" +
			"?.ToObject<" + typemap.Nullable(p.TargetType, true) + ">() ?? " + p.DefaultLiteral + ";\n")
	}
	b.WriteString("\t" + s.SetterNamespace + "." + a.Method + "(" + a.CallThrough() + ");\n")
	b.WriteString("}\n\n")
	return b.String()
}

// Table synthesizes the setter stubs that pass a whole table-valued
// parameter to the table's synchronization procedure.
func (s *Synthesizer) Table(t *models.TableDefinition) *Accessor {
	procedure := merge.ProcedureName(t.Name)
	method := naming.PutMethodName(procedure)
	argument := naming.ToCamel(t.Name) + "Table"

	a := &Accessor{
		Routine: procedure,
		Method:  method,
		Verb:    naming.VerbSet,
		Shape:   ShapeVoid,
		Route:   t.Name,
		Parameters: []Parameter{{
			CatalogName:    merge.SourceParameter(),
			Name:           argument,
			TargetType:     "DataTable",
			DefaultLiteral: "new DataTable()",
		}},
	}

	var data strings.Builder
	data.WriteString(DocBlock(naming.VerbSet, t.Name))
	data.WriteString("internal static void " + procedure + "(DataTable " + argument + ")\n")
	data.WriteString("{\n")
	data.WriteString("\tDataAccess.SetData(" + quote(procedure) + sqlParameterArray(s.Bindings(a)) + ");\n")
	data.WriteString("}\n\n")
	a.DataAccess = data.String()

	var ctrl strings.Builder
	ctrl.WriteString(DocBlock(naming.VerbSet, t.Name))
	ctrl.WriteString("[Route(" + quote(a.Route) + ")]\n")
	ctrl.WriteString("public PostResult " + method + "([FromBody] DataTable " + argument + ")\n")
	ctrl.WriteString("{\n")
	ctrl.WriteString("\t" + s.TableSetterNamespace + "." + procedure + "(" + argument + ");\n")
	ctrl.WriteString("\treturn new PostResult(PostResult.ResultType.Success);\n")
	ctrl.WriteString("}\n\n")
	a.Controller = ctrl.String()

	return a
}

func quote(s string) string {
	return `"` + s + `"`
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
