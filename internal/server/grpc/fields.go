package grpc

import (
	"encoding/base64"
	"fmt"
	"math"

	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/extractor"
	"google.golang.org/protobuf/types/known/structpb"
)

// fields reads typed values out of a request Struct. Missing optional keys
// yield zero values; wrong types are validation errors.
type fields struct {
	m map[string]*structpb.Value
}

func newFields(s *structpb.Struct) fields {
	return fields{m: s.GetFields()}
}

func (f fields) number(key string) (float64, bool, error) {
	v, ok := f.m[key]
	if !ok || v.GetKind() == nil {
		return 0, false, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return 0, false, nil
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		return 0, false, fmt.Errorf("%w: %s must be a number", common.ErrValidation, key)
	}
	return n.NumberValue, true, nil
}

func (f fields) requiredInt(key string) (int64, error) {
	n, ok, err := f.number(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", common.ErrValidation, key)
	}
	if n != math.Trunc(n) {
		return 0, fmt.Errorf("%w: %s must be an integer", common.ErrValidation, key)
	}
	return int64(n), nil
}

func (f fields) optInt(key string) (*int, error) {
	n, ok, err := f.number(key)
	if err != nil || !ok {
		return nil, err
	}
	if n != math.Trunc(n) {
		return nil, fmt.Errorf("%w: %s must be an integer", common.ErrValidation, key)
	}
	v := int(n)
	return &v, nil
}

func (f fields) optFloat(key string) (*float64, error) {
	n, ok, err := f.number(key)
	if err != nil || !ok {
		return nil, err
	}
	return &n, nil
}

func (f fields) str(key string) string {
	return f.m[key].GetStringValue()
}

func (f fields) flag(key string) bool {
	return f.m[key].GetBoolValue()
}

// media decodes the base64 "media" field together with its "filename".
func (f fields) media() (extractor.Media, error) {
	raw := f.str("media")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return extractor.Media{}, fmt.Errorf("%w: media is not valid base64", common.ErrValidation)
	}
	return extractor.Media{Data: data, Filename: f.str("filename")}, nil
}

func optFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func response(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("%w: encode response: %v", common.ErrInternal, err)
	}
	return s, nil
}
