package utils

import (
	"errors"
	"fmt"
	"io/ioutil"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

var (
	// ErrEmptyFile yaml 파일이 비어있음
	ErrEmptyFile = errors.New("yaml file is empty")
	// ErrMalformedFile yaml 파일을 해석할 수 없음
	ErrMalformedFile = errors.New("yaml file is malformed")
	// ErrMissingKey 필수 설정값이 없음
	ErrMissingKey = errors.New("missing configuration key")
)

// ConfigBox yaml 설정 트리. "a.b.c" 형태의 키로 하위 값에 접근
type ConfigBox map[string]interface{}

// ReadYAML yaml 파일을 읽어 ConfigBox로 반환
func ReadYAML(log *zap.Logger, path string) (ConfigBox, error) {
	log = orNop(log)

	b, err := ioutil.ReadFile(path)
	if err != nil {
		log.Error("Fail to read yaml file", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	var content interface{}
	if err := yaml.Unmarshal(b, &content); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrMalformedFile, path, err)
	}
	if content == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	m, ok := normalize(content).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s: top level is not a mapping", ErrMalformedFile, path)
	}

	log.Info("yaml file loaded successfully", zap.String("path", path))
	return ConfigBox(m), nil
}

// yaml.v2는 map[interface{}]interface{}로 해석하기 때문에 문자열 키로 변환
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = normalize(val)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, val := range t {
			s[i] = normalize(val)
		}
		return s
	default:
		return v
	}
}

// Get 키에 해당하는 값 반환
func (b ConfigBox) Get(key string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(b)
	for _, k := range strings.Split(key, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[k]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Has 키 존재 여부
func (b ConfigBox) Has(key string) bool {
	v, ok := b.Get(key)
	return ok && v != nil
}

func (b ConfigBox) must(key string) (interface{}, error) {
	v, ok := b.Get(key)
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	return v, nil
}

// Sub 하위 트리 반환
func (b ConfigBox) Sub(key string) (ConfigBox, error) {
	v, err := b.must(key)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: not a mapping (%T)", key, v)
	}
	return ConfigBox(m), nil
}

// String 문자열 값 반환
func (b ConfigBox) String(key string) (string, error) {
	v, err := b.must(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: not a string (%T)", key, v)
	}
	return s, nil
}

// Int 정수 값 반환
func (b ConfigBox) Int(key string) (int, error) {
	v, err := b.must(key)
	if err != nil {
		return 0, err
	}
	return toInt(key, v)
}

// Float 실수 값 반환. 정수도 허용
func (b ConfigBox) Float(key string) (float64, error) {
	v, err := b.must(key)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("%s: not a number (%T)", key, v)
	}
}

// Bool 논리 값 반환
func (b ConfigBox) Bool(key string) (bool, error) {
	v, err := b.must(key)
	if err != nil {
		return false, err
	}
	t, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: not a bool (%T)", key, v)
	}
	return t, nil
}

// Ints 정수 목록 반환
func (b ConfigBox) Ints(key string) ([]int, error) {
	v, err := b.must(key)
	if err != nil {
		return nil, err
	}
	s, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: not a list (%T)", key, v)
	}
	ints := make([]int, len(s))
	for i, e := range s {
		if ints[i], err = toInt(fmt.Sprintf("%s[%d]", key, i), e); err != nil {
			return nil, err
		}
	}
	return ints, nil
}

// Strings 문자열 목록 반환
func (b ConfigBox) Strings(key string) ([]string, error) {
	v, err := b.must(key)
	if err != nil {
		return nil, err
	}
	s, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: not a list (%T)", key, v)
	}
	strs := make([]string, len(s))
	for i, e := range s {
		if strs[i], ok = e.(string); !ok {
			return nil, fmt.Errorf("%s[%d]: not a string (%T)", key, i, e)
		}
	}
	return strs, nil
}

// Decode 트리를 구조체로 변환 (yaml 태그 사용)
func (b ConfigBox) Decode(out interface{}) error {
	raw, err := yaml.Marshal(map[string]interface{}(b))
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}

func toInt(key string, v interface{}) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case uint64:
		return int(t), nil
	default:
		return 0, fmt.Errorf("%s: not an integer (%T)", key, v)
	}
}
