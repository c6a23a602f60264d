package scenario

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"
)

const scriptFuncName = "Scenarios"

// LoadScriptFile interprets a Go source file and collects the categories
// returned by its Scenarios() function. Each returned map is decoded exactly
// like a YAML document, so it may describe a category or a bare scenario.
func LoadScriptFile(path string) ([]SourceFile, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("scenario: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("scenario: load stdlib symbols: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("scenario: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(scriptFuncName)
	if err != nil {
		return nil, fmt.Errorf("scenario: %s must define %s() ([]map[string]any, error): %w", path, scriptFuncName, err)
	}
	docs, callErr := invokeScriptFunc(fnValue)
	if callErr != nil {
		return nil, fmt.Errorf("scenario: %s: %w", path, callErr)
	}
	files := make([]SourceFile, 0, len(docs))
	for idx, raw := range docs {
		payload, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("scenario: %s document[%d]: %w", path, idx, err)
		}
		cat, err := ParseCategoryYAML(payload)
		if err != nil {
			return nil, fmt.Errorf("scenario: %s document[%d]: %w", path, idx, err)
		}
		files = append(files, SourceFile{Category: cat, Path: fmt.Sprintf("%s#%d", path, idx+1)})
	}
	return files, nil
}

func invokeScriptFunc(value reflect.Value) ([]map[string]any, error) {
	if !value.IsValid() {
		return nil, fmt.Errorf("missing %s function", scriptFuncName)
	}
	if value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", scriptFuncName)
	}
	results := value.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", scriptFuncName)
	}
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok && e != nil {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned non-error second value", scriptFuncName)
	}
	docsVal := results[0]
	if docs, ok := docsVal.Interface().([]map[string]any); ok {
		return docs, nil
	}
	if docsVal.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", scriptFuncName)
	}
	out := make([]map[string]any, docsVal.Len())
	for i := 0; i < docsVal.Len(); i++ {
		entry, ok := docsVal.Index(i).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not map[string]any", scriptFuncName, i)
		}
		out[i] = entry
	}
	return out, nil
}
