package jni

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedSignature is returned for a descriptor that is not a valid
// JVM method signature.
var ErrMalformedSignature = errors.New("malformed method signature")

// JavaType is one field descriptor from a method signature.
type JavaType struct {
	Base  byte   // Z B C S I J F D V or L
	Dims  int    // array dimensions
	Class string // internal class name for L types, e.g. "java/lang/String"
}

func (t JavaType) String() string {
	var b strings.Builder
	for i := 0; i < t.Dims; i++ {
		b.WriteByte('[')
	}
	b.WriteByte(t.Base)
	if t.Base == 'L' {
		b.WriteString(t.Class)
		b.WriteByte(';')
	}
	return b.String()
}

// Native returns the C type used for this Java type at the JNI boundary.
func (t JavaType) Native() NativeType {
	if t.Dims > 1 || (t.Dims == 1 && t.Base == 'L') {
		return JobjectArray
	}
	if t.Dims == 1 {
		switch t.Base {
		case 'Z':
			return JbooleanArray
		case 'B':
			return JbyteArray
		case 'C':
			return JcharArray
		case 'S':
			return JshortArray
		case 'I':
			return JintArray
		case 'J':
			return JlongArray
		case 'F':
			return JfloatArray
		case 'D':
			return JdoubleArray
		}
		return Invalid
	}
	switch t.Base {
	case 'Z':
		return Jboolean
	case 'B':
		return Jbyte
	case 'C':
		return Jchar
	case 'S':
		return Jshort
	case 'I':
		return Jint
	case 'J':
		return Jlong
	case 'F':
		return Jfloat
	case 'D':
		return Jdouble
	case 'V':
		return Void
	case 'L':
		switch t.Class {
		case "java/lang/String":
			return Jstring
		case "java/lang/Class":
			return Jclass
		}
		return Jobject
	}
	return Invalid
}

// JavaMethod is a method resolved through GetMethodID or RegisterNatives.
type JavaMethod struct {
	Name      string
	Signature string
	Params    []JavaType
	Return    JavaType
}

// NativeParams returns the C types of the Java parameters, in order.
func (m *JavaMethod) NativeParams() []NativeType {
	out := make([]NativeType, len(m.Params))
	for i, p := range m.Params {
		out[i] = p.Native()
	}
	return out
}

// NativeReturn returns the C type of the Java return value.
func (m *JavaMethod) NativeReturn() NativeType {
	return m.Return.Native()
}

func (m *JavaMethod) String() string {
	return m.Name + m.Signature
}

// NewJavaMethod parses sig and names the result.
func NewJavaMethod(name, sig string) (*JavaMethod, error) {
	params, ret, err := ParseSignature(sig)
	if err != nil {
		return nil, err
	}
	return &JavaMethod{Name: name, Signature: sig, Params: params, Return: ret}, nil
}

// ParseSignature splits a method descriptor into parameter and return types.
func ParseSignature(sig string) ([]JavaType, JavaType, error) {
	if !strings.HasPrefix(sig, "(") {
		return nil, JavaType{}, fmt.Errorf("%w: %q: missing '('", ErrMalformedSignature, sig)
	}
	var params []JavaType
	i := 1
	for {
		if i >= len(sig) {
			return nil, JavaType{}, fmt.Errorf("%w: %q: missing ')'", ErrMalformedSignature, sig)
		}
		if sig[i] == ')' {
			i++
			break
		}
		t, n, err := parseFieldType(sig, i, false)
		if err != nil {
			return nil, JavaType{}, err
		}
		params = append(params, t)
		i = n
	}
	ret, n, err := parseFieldType(sig, i, true)
	if err != nil {
		return nil, JavaType{}, err
	}
	if n != len(sig) {
		return nil, JavaType{}, fmt.Errorf("%w: %q: trailing data at %d", ErrMalformedSignature, sig, n)
	}
	return params, ret, nil
}

func parseFieldType(sig string, i int, isReturn bool) (JavaType, int, error) {
	var t JavaType
	for i < len(sig) && sig[i] == '[' {
		t.Dims++
		i++
	}
	if i >= len(sig) {
		return t, i, fmt.Errorf("%w: %q: truncated type", ErrMalformedSignature, sig)
	}
	t.Base = sig[i]
	switch t.Base {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D':
		return t, i + 1, nil
	case 'V':
		if !isReturn || t.Dims > 0 {
			return t, i, fmt.Errorf("%w: %q: void at %d", ErrMalformedSignature, sig, i)
		}
		return t, i + 1, nil
	case 'L':
		end := strings.IndexByte(sig[i:], ';')
		if end <= 1 {
			return t, i, fmt.Errorf("%w: %q: bad class name at %d", ErrMalformedSignature, sig, i)
		}
		t.Class = sig[i+1 : i+end]
		return t, i + end + 1, nil
	}
	return t, i, fmt.Errorf("%w: %q: unexpected %q at %d", ErrMalformedSignature, sig, t.Base, i)
}
