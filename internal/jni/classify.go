package jni

import "strings"

// Tail describes how a Call*/New* style function receives its Java arguments.
type Tail int

const (
	TailNone     Tail = iota
	TailVariadic      // "..."
	TailVaList        // va_list
	TailJValues       // const jvalue*
)

func (t Tail) String() string {
	switch t {
	case TailVariadic:
		return "variadic"
	case TailVaList:
		return "va_list"
	case TailJValues:
		return "jvalue"
	}
	return "none"
}

// Bookkeeping names the side effect the interceptor performs after a call.
type Bookkeeping int

const (
	BookNone            Bookkeeping = iota
	BookMethodID                    // GetMethodID, GetStaticMethodID
	BookFieldID                     // GetFieldID, GetStaticFieldID
	BookJavaVM                      // GetJavaVM
	BookRegisterNatives             // RegisterNatives
	BookEnvOut                      // GetEnv, AttachCurrentThread*
)

func (b Bookkeeping) String() string {
	switch b {
	case BookMethodID:
		return "method-id"
	case BookFieldID:
		return "field-id"
	case BookJavaVM:
		return "java-vm"
	case BookRegisterNatives:
		return "register-natives"
	case BookEnvOut:
		return "env-out"
	}
	return ""
}

// Region locates the start, length and buffer parameters of a
// Get/Set*Region call.
type Region struct {
	Start, Len, Buf int
	Elem            NativeType
}

var regionElems = map[string]NativeType{
	"Boolean":   Jboolean,
	"Byte":      Jbyte,
	"Char":      Jchar,
	"Short":     Jshort,
	"Int":       Jint,
	"Long":      Jlong,
	"Float":     Jfloat,
	"Double":    Jdouble,
	"String":    Jchar,
	"StringUTF": Jbyte,
}

func classify(m *MethodDescriptor) {
	m.MethodIDArg = -1
	if m.Reserved {
		return
	}

	if n := len(m.Params); n > 0 {
		switch m.Params[n-1] {
		case Variadic:
			m.Tail = TailVariadic
		case VaList:
			m.Tail = TailVaList
		case JValuePtr:
			m.Tail = TailJValues
		}
	}

	for i, p := range m.Params {
		switch p {
		case JmethodID:
			if m.MethodIDArg < 0 {
				m.MethodIDArg = i
			}
		case CharPtr:
			m.StringArgs = append(m.StringArgs, i)
		}
	}

	if strings.HasSuffix(m.Name, "Region") && len(m.Params) == 5 {
		for _, prefix := range []string{"Get", "Set"} {
			if !strings.HasPrefix(m.Name, prefix) {
				continue
			}
			kind := strings.TrimSuffix(strings.TrimPrefix(m.Name, prefix), "Region")
			kind = strings.TrimSuffix(kind, "Array")
			if elem, ok := regionElems[kind]; ok {
				m.Region = &Region{Start: 2, Len: 3, Buf: 4, Elem: elem}
			}
		}
	}

	switch m.Name {
	case "GetMethodID", "GetStaticMethodID":
		m.Bookkeeping = BookMethodID
	case "GetFieldID", "GetStaticFieldID":
		m.Bookkeeping = BookFieldID
	case "GetJavaVM":
		m.Bookkeeping = BookJavaVM
	case "RegisterNatives":
		m.Bookkeeping = BookRegisterNatives
	case "GetEnv", "AttachCurrentThread", "AttachCurrentThreadAsDaemon":
		if m.Table == VMTable {
			m.Bookkeeping = BookEnvOut
		}
	}
}
