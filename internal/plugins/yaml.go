package plugins

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/smeli-lang/smeli-sub000/internal/evaluator"
)

// YAML decodes documents into smeli values: mappings become scopes,
// sequences lists, scalars numbers, strings, bools or nil.
func YAML() *Plugin {
	return &Plugin{
		Name: "yaml",
		Bindings: []*evaluator.Binding{
			builtinBinding("decode", builtinYamlDecode),
			builtinBinding("read", builtinYamlRead),
			builtinBinding("encode", builtinYamlEncode),
		},
		Code: "load: path => decode(read(path))",
	}
}

func builtinYamlDecode(rt *evaluator.Runtime, scope *evaluator.Scope, args []*evaluator.Evaluator) (evaluator.Result, error) {
	if err := checkArity("decode", args, 1); err != nil {
		return evaluator.Result{}, err
	}
	values, err := evaluator.EvaluateArgs(rt, scope, args)
	if err != nil {
		return evaluator.Result{}, err
	}
	text, err := argString("decode", values, 0)
	if err != nil {
		return evaluator.Result{}, err
	}
	var data interface{}
	if err := yaml.Unmarshal([]byte(text), &data); err != nil {
		return evaluator.Result{}, evaluator.NewError(evaluator.ErrPlugin, "yaml parse error: %v", err)
	}
	v, err := fromYaml(rt, scope, data)
	return evaluator.Done(v), err
}

// read returns the content of a file as a string.
func builtinYamlRead(rt *evaluator.Runtime, scope *evaluator.Scope, args []*evaluator.Evaluator) (evaluator.Result, error) {
	if err := checkArity("read", args, 1); err != nil {
		return evaluator.Result{}, err
	}
	values, err := evaluator.EvaluateArgs(rt, scope, args)
	if err != nil {
		return evaluator.Result{}, err
	}
	path, err := argString("read", values, 0)
	if err != nil {
		return evaluator.Result{}, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return evaluator.Result{}, evaluator.NewError(evaluator.ErrPlugin, "cannot read file: %v", err)
	}
	return evaluator.Done(&evaluator.String{Value: string(content)}), nil
}

func builtinYamlEncode(rt *evaluator.Runtime, scope *evaluator.Scope, args []*evaluator.Evaluator) (evaluator.Result, error) {
	if err := checkArity("encode", args, 1); err != nil {
		return evaluator.Result{}, err
	}
	v, err := rt.Evaluate(args[0], scope)
	if err != nil {
		return evaluator.Result{}, err
	}
	data, err := toYaml(rt, v)
	if err != nil {
		return evaluator.Result{}, err
	}
	out, err := yaml.Marshal(data)
	if err != nil {
		return evaluator.Result{}, evaluator.NewError(evaluator.ErrPlugin, "yaml encoding error: %v", err)
	}
	return evaluator.Done(&evaluator.String{Value: string(out)}), nil
}

// fromYaml converts a value produced by yaml.Unmarshal. Every mapping gets
// its own scope, created under parent and owned by the running evaluation.
func fromYaml(rt *evaluator.Runtime, parent *evaluator.Scope, data interface{}) (evaluator.Object, error) {
	switch v := data.(type) {
	case nil:
		return evaluator.NIL, nil
	case bool:
		return evaluator.NativeBool(v), nil
	case int:
		return &evaluator.Number{Value: float64(v)}, nil
	case int64:
		return &evaluator.Number{Value: float64(v)}, nil
	case uint64:
		return &evaluator.Number{Value: float64(v)}, nil
	case float64:
		return &evaluator.Number{Value: v}, nil
	case string:
		return &evaluator.String{Value: v}, nil
	case []interface{}:
		elements := make([]evaluator.Object, len(v))
		for i, item := range v {
			obj, err := fromYaml(rt, parent, item)
			if err != nil {
				return nil, err
			}
			elements[i] = obj
		}
		return &evaluator.List{Elements: elements}, nil
	case map[string]interface{}:
		return yamlScope(rt, parent, v)
	case map[interface{}]interface{}:
		fields := make(map[string]interface{}, len(v))
		for k, val := range v {
			fields[fmt.Sprintf("%v", k)] = val
		}
		return yamlScope(rt, parent, fields)
	default:
		return nil, evaluator.NewError(evaluator.ErrPlugin, "unsupported yaml value type: %T", data)
	}
}

func yamlScope(rt *evaluator.Runtime, parent *evaluator.Scope, fields map[string]interface{}) (evaluator.Object, error) {
	s := parent.NewChild(nil)
	rt.Acquire(s)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		obj, err := fromYaml(rt, s, fields[k])
		if err != nil {
			return nil, err
		}
		s.Push(evaluator.NewValueBinding(k, obj))
	}
	return s, nil
}

// toYaml converts a smeli value into something yaml.Marshal accepts. Scope
// bindings are evaluated.
func toYaml(rt *evaluator.Runtime, v evaluator.Object) (interface{}, error) {
	switch o := v.(type) {
	case *evaluator.Nil:
		return nil, nil
	case *evaluator.Boolean:
		return o.Value, nil
	case *evaluator.Number:
		if o.Value == float64(int64(o.Value)) {
			return int64(o.Value), nil
		}
		return o.Value, nil
	case *evaluator.String:
		return o.Value, nil
	case *evaluator.List:
		out := make([]interface{}, len(o.Elements))
		for i, el := range o.Elements {
			item, err := toYaml(rt, el)
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case *evaluator.Scope:
		out := map[string]interface{}{}
		for _, name := range o.Names() {
			val, err := rt.EvaluateName(name, o)
			if err != nil {
				return nil, err
			}
			item, err := toYaml(rt, val)
			if err != nil {
				return nil, err
			}
			out[name] = item
		}
		return out, nil
	}
	return nil, evaluator.NewError(evaluator.ErrType, "cannot encode %s as yaml", v.Type())
}
