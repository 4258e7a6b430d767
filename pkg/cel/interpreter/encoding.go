package interpreter

import (
	"encoding/base64"

	celerrors "mercator-hq/gateway/pkg/cel/errors"
	"mercator-hq/gateway/pkg/cel/value"
)

func installEncoding(c *Context) {
	c.AddQualifiedFunction("base64", "encode", fnBase64Encode)
	c.AddQualifiedFunction("base64", "decode", fnBase64Decode)
	c.AddQualifiedFunction("json", "parse", fnJSONParse)
	c.AddQualifiedFunction("json", "stringify", fnJSONStringify)
}

// stringOrBytes returns the raw bytes of a string or bytes operand.
func stringOrBytes(v value.Value) ([]byte, error) {
	switch x := value.Materialize(v).(type) {
	case value.String:
		return []byte(x), nil
	case value.Bytes:
		return x.Data(), nil
	}
	return nil, celerrors.UnexpectedType(value.TypeName(value.Materialize(v)), "string or bytes")
}

func fnBase64Encode(call *FunctionCall) (value.Value, error) {
	ops, err := call.ExpectOperands(1, 1)
	if err != nil {
		return nil, err
	}
	data, err := stringOrBytes(ops[0])
	if err != nil {
		return nil, err
	}
	return value.String(base64.StdEncoding.EncodeToString(data)), nil
}

// fnBase64Decode accepts padded and unpadded standard encoding.
func fnBase64Decode(call *FunctionCall) (value.Value, error) {
	ops, err := call.ExpectOperands(1, 1)
	if err != nil {
		return nil, err
	}
	data, err := stringOrBytes(ops[0])
	if err != nil {
		return nil, err
	}
	out, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		out, err = base64.RawStdEncoding.DecodeString(string(data))
	}
	if err != nil {
		return nil, call.Error(err.Error())
	}
	return value.OwnedBytes(out), nil
}

func fnJSONParse(call *FunctionCall) (value.Value, error) {
	ops, err := call.ExpectOperands(1, 1)
	if err != nil {
		return nil, err
	}
	data, err := stringOrBytes(ops[0])
	if err != nil {
		return nil, err
	}
	v, err := value.ParseJSON(data)
	if err != nil {
		return nil, call.Error(err.Error())
	}
	return v, nil
}

func fnJSONStringify(call *FunctionCall) (value.Value, error) {
	ops, err := call.ExpectOperands(1, 1)
	if err != nil {
		return nil, err
	}
	data, err := value.MarshalJSON(ops[0])
	if err != nil {
		return nil, call.Error(err.Error())
	}
	return value.String(data), nil
}
