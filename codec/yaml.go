package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// YAML reads and writes YAML text. Compact output uses flow style.
// Comments are always accepted on read, as they are part of the syntax.
var YAML Syntax = yamlSyntax{}

type yamlSyntax struct{}

func (yamlSyntax) Name() string {
	return "yaml"
}

func (yamlSyntax) Encode(tree any, opts EncodeOptions) ([]byte, error) {
	node, err := yamlNodeOf(tree, opts)
	if err != nil {
		return nil, err
	}

	if !opts.Indent {
		node.Style |= yaml.FlowStyle
	}

	var buf bytes.Buffer

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(node); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}

	return buf.Bytes(), nil
}

func yamlScalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func yamlNodeOf(value any, opts EncodeOptions) (*yaml.Node, error) {
	switch value := value.(type) {
	case nil:
		return yamlScalar("!!null", "null"), nil

	case bool:
		return yamlScalar("!!bool", strconv.FormatBool(value)), nil

	case string:
		return yamlScalar("!!str", value), nil

	case Number:
		if _, err := value.Int64(); err == nil {
			return yamlScalar("!!int", string(value)), nil
		}

		if _, err := value.Float64(); err != nil {
			return nil, fmt.Errorf("number literal %q: %w", string(value), ErrUnsupportedValue)
		}

		return yamlScalar("!!float", string(value)), nil

	case int:
		return yamlScalar("!!int", strconv.FormatInt(int64(value), 10)), nil

	case int64:
		return yamlScalar("!!int", strconv.FormatInt(value, 10)), nil

	case uint64:
		return yamlScalar("!!int", strconv.FormatUint(value, 10)), nil

	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, fmt.Errorf("float %v: %w", value, ErrUnsupportedValue)
		}

		return yamlScalar("!!float", strconv.FormatFloat(value, 'g', -1, 64)), nil

	case *Object:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

		for _, key := range value.orderedKeys(opts.DiscriminatorKey) {
			propertyValue := value.values[key]
			if propertyValue == nil && !opts.IncludeNulls {
				continue
			}

			valueNode, err := yamlNodeOf(propertyValue, opts)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", key, err)
			}

			node.Content = append(node.Content, yamlScalar("!!str", key), valueNode)
		}

		return node, nil

	case map[string]any:
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		obj := NewObject(len(keys))
		for _, key := range keys {
			obj.Set(key, value[key])
		}

		return yamlNodeOf(obj, opts)

	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}

		for idx, element := range value {
			elementNode, err := yamlNodeOf(element, opts)
			if err != nil {
				return nil, fmt.Errorf("element idx=%d: %w", idx, err)
			}

			node.Content = append(node.Content, elementNode)
		}

		return node, nil

	default:
		return nil, fmt.Errorf("tree value of type %T: %w", value, ErrUnsupportedValue)
	}
}

func (yamlSyntax) Decode(text []byte, opts DecodeOptions) (any, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(text, &document); err != nil {
		return nil, &SyntaxError{Source: opts.Source, Line: lineOf(err), Err: err}
	}

	// empty input
	if document.Kind == 0 || len(document.Content) == 0 {
		return nil, &SyntaxError{Source: opts.Source, Err: errors.New("empty document")}
	}

	reader := yamlReader{
		opts:      opts,
		expanding: map[*yaml.Node]struct{}{},
		budget:    minNodeBudget + nodesPerByte*len(text),
	}

	return reader.tree(document.Content[0])
}

const (
	minNodeBudget = 1 << 12
	nodesPerByte  = 64
)

var errAliasExpansion = errors.New("alias expansion exceeds the size of the document")

// yamlReader converts yaml nodes into a tree. Aliases are expanded in place, the
// number of visited nodes is bounded by the size of the text.
type yamlReader struct {
	opts DecodeOptions

	// anchors whose alias is being expanded
	expanding map[*yaml.Node]struct{}

	// nodes left to visit
	budget int
}

func (r *yamlReader) tree(node *yaml.Node) (any, error) {
	fail := func(err error) error {
		return &SyntaxError{Source: r.opts.Source, Line: node.Line, Column: node.Column, Err: err}
	}

	r.budget--
	if r.budget < 0 {
		return nil, fail(errAliasExpansion)
	}

	switch node.Kind {
	case yaml.AliasNode:
		if _, ok := r.expanding[node.Alias]; ok {
			return nil, fail(fmt.Errorf("alias %q refers to itself", node.Value))
		}

		r.expanding[node.Alias] = struct{}{}
		defer delete(r.expanding, node.Alias)

		return r.tree(node.Alias)

	case yaml.MappingNode:
		obj := &Object{Line: node.Line}

		for idx := 0; idx+1 < len(node.Content); idx += 2 {
			keyNode := node.Content[idx]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fail(fmt.Errorf("mapping key of kind %d is not a scalar", keyNode.Kind))
			}

			value, err := r.tree(node.Content[idx+1])
			if err != nil {
				return nil, err
			}

			obj.Set(keyNode.Value, value)
		}

		return obj, nil

	case yaml.SequenceNode:
		values := make([]any, 0, len(node.Content))

		for _, child := range node.Content {
			value, err := r.tree(child)
			if err != nil {
				return nil, err
			}

			values = append(values, value)
		}

		return values, nil

	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			return nil, nil

		case "!!bool":
			var value bool
			if err := node.Decode(&value); err != nil {
				return nil, fail(err)
			}

			return value, nil

		case "!!int":
			var value int64
			if err := node.Decode(&value); err == nil {
				return Number(strconv.FormatInt(value, 10)), nil
			}

			var unsigned uint64
			if err := node.Decode(&unsigned); err != nil {
				return nil, fail(err)
			}

			return Number(strconv.FormatUint(unsigned, 10)), nil

		case "!!float":
			var value float64
			if err := node.Decode(&value); err != nil {
				return nil, fail(err)
			}

			// .inf and .nan have no number literal
			if math.IsNaN(value) || math.IsInf(value, 0) {
				return value, nil
			}

			return Number(strconv.FormatFloat(value, 'g', -1, 64)), nil

		default:
			return node.Value, nil
		}

	default:
		return nil, fail(fmt.Errorf("unexpected node kind %d", node.Kind))
	}
}
