package environment

import (
	"context"
	"fmt"
	"os"
	"strings"
)

type KeyValuePair struct {
	Key   string
	Value string
}

// EnvFileProvider serves variables from a dotenv file. A missing file is
// treated as empty.
type EnvFileProvider struct {
	values map[string]string
}

func NewEnvFileProvider(path string) (*EnvFileProvider, error) {
	p := &EnvFileProvider{values: map[string]string{}}

	pairs, err := ReadEnvFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, err
	}
	for _, kv := range pairs {
		p.values[kv.Key] = kv.Value
	}
	return p, nil
}

func (p *EnvFileProvider) Get(_ context.Context, name string) (string, bool) {
	v, ok := p.values[name]
	return v, ok
}

func ReadEnvFile(absolutePath string) ([]KeyValuePair, error) {
	buf, err := os.ReadFile(absolutePath)
	if err != nil {
		return nil, err
	}

	var lines []KeyValuePair

	for line := range strings.SplitSeq(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid env file line: %s", line)
		}

		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)

		if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
			v = v[1 : len(v)-1]
		}

		lines = append(lines, KeyValuePair{
			Key:   k,
			Value: v,
		})
	}

	return lines, nil
}
