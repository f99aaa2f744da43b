package codegen

import (
	"github.com/vektah/gqlparser/v2/ast"
)

// The node types below mirror the graphql-js AST (without locations) so the
// emitted documents can be handed to any graphql-js based client.

type documentNode struct {
	Kind        string `json:"kind"`
	Definitions []any  `json:"definitions"`
}

type nameNode struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type namedTypeNode struct {
	Kind string   `json:"kind"`
	Name nameNode `json:"name"`
}

type wrappingTypeNode struct {
	Kind string `json:"kind"`
	Type any    `json:"type"`
}

type operationDefinitionNode struct {
	Kind                string                   `json:"kind"`
	Operation           string                   `json:"operation"`
	Name                *nameNode                `json:"name,omitempty"`
	VariableDefinitions []variableDefinitionNode `json:"variableDefinitions"`
	Directives          []directiveNode          `json:"directives"`
	SelectionSet        selectionSetNode         `json:"selectionSet"`
}

type fragmentDefinitionNode struct {
	Kind          string           `json:"kind"`
	Name          nameNode         `json:"name"`
	TypeCondition namedTypeNode    `json:"typeCondition"`
	Directives    []directiveNode  `json:"directives"`
	SelectionSet  selectionSetNode `json:"selectionSet"`
}

type variableNode struct {
	Kind string   `json:"kind"`
	Name nameNode `json:"name"`
}

type variableDefinitionNode struct {
	Kind         string          `json:"kind"`
	Variable     variableNode    `json:"variable"`
	Type         any             `json:"type"`
	DefaultValue any             `json:"defaultValue,omitempty"`
	Directives   []directiveNode `json:"directives"`
}

type selectionSetNode struct {
	Kind       string `json:"kind"`
	Selections []any  `json:"selections"`
}

type fieldNode struct {
	Kind         string            `json:"kind"`
	Alias        *nameNode         `json:"alias,omitempty"`
	Name         nameNode          `json:"name"`
	Arguments    []argumentNode    `json:"arguments"`
	Directives   []directiveNode   `json:"directives"`
	SelectionSet *selectionSetNode `json:"selectionSet,omitempty"`
}

type fragmentSpreadNode struct {
	Kind       string          `json:"kind"`
	Name       nameNode        `json:"name"`
	Directives []directiveNode `json:"directives"`
}

type inlineFragmentNode struct {
	Kind          string           `json:"kind"`
	TypeCondition *namedTypeNode   `json:"typeCondition,omitempty"`
	Directives    []directiveNode  `json:"directives"`
	SelectionSet  selectionSetNode `json:"selectionSet"`
}

type argumentNode struct {
	Kind  string   `json:"kind"`
	Name  nameNode `json:"name"`
	Value any      `json:"value"`
}

type directiveNode struct {
	Kind      string         `json:"kind"`
	Name      nameNode       `json:"name"`
	Arguments []argumentNode `json:"arguments"`
}

type scalarValueNode struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type stringValueNode struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
	Block bool   `json:"block"`
}

type booleanValueNode struct {
	Kind  string `json:"kind"`
	Value bool   `json:"value"`
}

type nullValueNode struct {
	Kind string `json:"kind"`
}

type listValueNode struct {
	Kind   string `json:"kind"`
	Values []any  `json:"values"`
}

type objectFieldNode struct {
	Kind  string   `json:"kind"`
	Name  nameNode `json:"name"`
	Value any      `json:"value"`
}

type objectValueNode struct {
	Kind   string            `json:"kind"`
	Fields []objectFieldNode `json:"fields"`
}

func nodeName(value string) nameNode {
	return nameNode{Kind: "Name", Value: value}
}

func namedType(value string) namedTypeNode {
	return namedTypeNode{Kind: "NamedType", Name: nodeName(value)}
}

func operationNode(op *ast.OperationDefinition) operationDefinitionNode {
	node := operationDefinitionNode{
		Kind:                "OperationDefinition",
		Operation:           string(op.Operation),
		VariableDefinitions: make([]variableDefinitionNode, 0, len(op.VariableDefinitions)),
		Directives:          directiveNodes(op.Directives),
		SelectionSet:        selectionSet(op.SelectionSet),
	}
	if op.Name != "" {
		n := nodeName(op.Name)
		node.Name = &n
	}
	for _, v := range op.VariableDefinitions {
		def := variableDefinitionNode{
			Kind:       "VariableDefinition",
			Variable:   variableNode{Kind: "Variable", Name: nodeName(v.Variable)},
			Type:       typeNode(v.Type),
			Directives: directiveNodes(v.Directives),
		}
		if v.DefaultValue != nil {
			def.DefaultValue = valueNode(v.DefaultValue)
		}
		node.VariableDefinitions = append(node.VariableDefinitions, def)
	}
	return node
}

func fragmentNode(frag *ast.FragmentDefinition) fragmentDefinitionNode {
	return fragmentDefinitionNode{
		Kind:          "FragmentDefinition",
		Name:          nodeName(frag.Name),
		TypeCondition: namedType(frag.TypeCondition),
		Directives:    directiveNodes(frag.Directives),
		SelectionSet:  selectionSet(frag.SelectionSet),
	}
}

func typeNode(t *ast.Type) any {
	var node any
	if t.Elem != nil {
		node = wrappingTypeNode{Kind: "ListType", Type: typeNode(t.Elem)}
	} else {
		node = namedType(t.NamedType)
	}
	if t.NonNull {
		return wrappingTypeNode{Kind: "NonNullType", Type: node}
	}
	return node
}

func selectionSet(set ast.SelectionSet) selectionSetNode {
	node := selectionSetNode{Kind: "SelectionSet", Selections: make([]any, 0, len(set))}
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			f := fieldNode{
				Kind:       "Field",
				Name:       nodeName(s.Name),
				Arguments:  argumentNodes(s.Arguments),
				Directives: directiveNodes(s.Directives),
			}
			if s.Alias != "" && s.Alias != s.Name {
				alias := nodeName(s.Alias)
				f.Alias = &alias
			}
			if len(s.SelectionSet) > 0 {
				nested := selectionSet(s.SelectionSet)
				f.SelectionSet = &nested
			}
			node.Selections = append(node.Selections, f)
		case *ast.FragmentSpread:
			node.Selections = append(node.Selections, fragmentSpreadNode{
				Kind:       "FragmentSpread",
				Name:       nodeName(s.Name),
				Directives: directiveNodes(s.Directives),
			})
		case *ast.InlineFragment:
			inline := inlineFragmentNode{
				Kind:         "InlineFragment",
				Directives:   directiveNodes(s.Directives),
				SelectionSet: selectionSet(s.SelectionSet),
			}
			if s.TypeCondition != "" {
				cond := namedType(s.TypeCondition)
				inline.TypeCondition = &cond
			}
			node.Selections = append(node.Selections, inline)
		}
	}
	return node
}

func argumentNodes(args ast.ArgumentList) []argumentNode {
	nodes := make([]argumentNode, 0, len(args))
	for _, a := range args {
		nodes = append(nodes, argumentNode{Kind: "Argument", Name: nodeName(a.Name), Value: valueNode(a.Value)})
	}
	return nodes
}

func directiveNodes(dirs ast.DirectiveList) []directiveNode {
	nodes := make([]directiveNode, 0, len(dirs))
	for _, d := range dirs {
		nodes = append(nodes, directiveNode{Kind: "Directive", Name: nodeName(d.Name), Arguments: argumentNodes(d.Arguments)})
	}
	return nodes
}

func valueNode(v *ast.Value) any {
	if v == nil {
		return nullValueNode{Kind: "NullValue"}
	}
	switch v.Kind {
	case ast.Variable:
		return variableNode{Kind: "Variable", Name: nodeName(v.Raw)}
	case ast.IntValue:
		return scalarValueNode{Kind: "IntValue", Value: v.Raw}
	case ast.FloatValue:
		return scalarValueNode{Kind: "FloatValue", Value: v.Raw}
	case ast.StringValue:
		return stringValueNode{Kind: "StringValue", Value: v.Raw}
	case ast.BlockValue:
		return stringValueNode{Kind: "StringValue", Value: v.Raw, Block: true}
	case ast.BooleanValue:
		return booleanValueNode{Kind: "BooleanValue", Value: v.Raw == "true"}
	case ast.EnumValue:
		return scalarValueNode{Kind: "EnumValue", Value: v.Raw}
	case ast.ListValue:
		values := make([]any, 0, len(v.Children))
		for _, c := range v.Children {
			values = append(values, valueNode(c.Value))
		}
		return listValueNode{Kind: "ListValue", Values: values}
	case ast.ObjectValue:
		fields := make([]objectFieldNode, 0, len(v.Children))
		for _, c := range v.Children {
			fields = append(fields, objectFieldNode{Kind: "ObjectField", Name: nodeName(c.Name), Value: valueNode(c.Value)})
		}
		return objectValueNode{Kind: "ObjectValue", Fields: fields}
	default:
		return nullValueNode{Kind: "NullValue"}
	}
}
