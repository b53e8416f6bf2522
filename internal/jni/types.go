// Package jni models the JNI function tables and Java method signatures.
//
// Every JNIEnv and JavaVM function is described by a MethodDescriptor holding
// its C parameter and return types. Java method signatures such as
// "(ILjava/lang/String;)V" parse into a JavaMethod whose parameters map onto
// the same native type set.
package jni

import "fmt"

// NativeType is a C type from jni.h as it appears in a function table entry.
type NativeType int

const (
	Invalid NativeType = iota
	Void
	Variadic // "..."
	VaList
	JValuePtr
	VoidPtr
	VoidPtrPtr
	CharPtr
	JNIEnvPtr
	JavaVMPtr
	JavaVMPtrPtr
	JNINativeMethodPtr

	Jboolean
	Jbyte
	Jchar
	Jshort
	Jint
	Jlong
	Jfloat
	Jdouble
	Jsize

	JbooleanPtr
	JbytePtr
	JcharPtr
	JshortPtr
	JintPtr
	JlongPtr
	JfloatPtr
	JdoublePtr

	Jobject
	Jclass
	Jstring
	Jthrowable
	Jweak
	Jarray
	JobjectArray
	JbooleanArray
	JbyteArray
	JcharArray
	JshortArray
	JintArray
	JlongArray
	JfloatArray
	JdoubleArray
	JmethodID
	JfieldID
	JobjectRefType
)

var nativeTypeNames = map[NativeType]string{
	Void:               "void",
	Variadic:           "...",
	VaList:             "va_list",
	JValuePtr:          "jvalue*",
	VoidPtr:            "void*",
	VoidPtrPtr:         "void**",
	CharPtr:            "char*",
	JNIEnvPtr:          "JNIEnv*",
	JavaVMPtr:          "JavaVM*",
	JavaVMPtrPtr:       "JavaVM**",
	JNINativeMethodPtr: "JNINativeMethod*",
	Jboolean:           "jboolean",
	Jbyte:              "jbyte",
	Jchar:              "jchar",
	Jshort:             "jshort",
	Jint:               "jint",
	Jlong:              "jlong",
	Jfloat:             "jfloat",
	Jdouble:            "jdouble",
	Jsize:              "jsize",
	JbooleanPtr:        "jboolean*",
	JbytePtr:           "jbyte*",
	JcharPtr:           "jchar*",
	JshortPtr:          "jshort*",
	JintPtr:            "jint*",
	JlongPtr:           "jlong*",
	JfloatPtr:          "jfloat*",
	JdoublePtr:         "jdouble*",
	Jobject:            "jobject",
	Jclass:             "jclass",
	Jstring:            "jstring",
	Jthrowable:         "jthrowable",
	Jweak:              "jweak",
	Jarray:             "jarray",
	JobjectArray:       "jobjectArray",
	JbooleanArray:      "jbooleanArray",
	JbyteArray:         "jbyteArray",
	JcharArray:         "jcharArray",
	JshortArray:        "jshortArray",
	JintArray:          "jintArray",
	JlongArray:         "jlongArray",
	JfloatArray:        "jfloatArray",
	JdoubleArray:       "jdoubleArray",
	JmethodID:          "jmethodID",
	JfieldID:           "jfieldID",
	JobjectRefType:     "jobjectRefType",
}

var nativeTypesByName = func() map[string]NativeType {
	m := make(map[string]NativeType, len(nativeTypeNames))
	for t, n := range nativeTypeNames {
		m[n] = t
	}
	return m
}()

func (t NativeType) String() string {
	if n, ok := nativeTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("NativeType(%d)", int(t))
}

// ParseNativeType looks up a jni.h type name such as "jint" or "JNIEnv*".
func ParseNativeType(name string) (NativeType, bool) {
	t, ok := nativeTypesByName[name]
	return t, ok
}

// FFIType is the machine-level class of a value: how it is sized, where the
// calling convention places it and how it is sign-extended.
type FFIType int

const (
	FFIVoid FFIType = iota
	FFIPointer
	FFIUInt8
	FFIInt8
	FFIUInt16
	FFIInt16
	FFIInt32
	FFIInt64
	FFIFloat
	FFIDouble
)

var ffiNames = [...]string{"void", "pointer", "uint8", "sint8", "uint16", "sint16", "sint32", "sint64", "float", "double"}

func (f FFIType) String() string {
	if int(f) < len(ffiNames) {
		return ffiNames[f]
	}
	return fmt.Sprintf("FFIType(%d)", int(f))
}

// IsFloat reports whether f travels in floating-point registers.
func (f FFIType) IsFloat() bool {
	return f == FFIFloat || f == FFIDouble
}

// Size returns the storage size of f for a pointer width of ptrSize bytes.
func (f FFIType) Size(ptrSize int) int {
	switch f {
	case FFIVoid:
		return 0
	case FFIPointer:
		return ptrSize
	case FFIUInt8, FFIInt8:
		return 1
	case FFIUInt16, FFIInt16:
		return 2
	case FFIInt32, FFIFloat:
		return 4
	default:
		return 8
	}
}

// Promote applies C default argument promotion, used for "..." arguments.
func (f FFIType) Promote() FFIType {
	switch f {
	case FFIUInt8, FFIInt8, FFIUInt16, FFIInt16:
		return FFIInt32
	case FFIFloat:
		return FFIDouble
	}
	return f
}

// FFI returns the machine class of t. Every reference, ID, pointer and va_list
// is pointer-sized.
func (t NativeType) FFI() FFIType {
	switch t {
	case Void:
		return FFIVoid
	case Jboolean:
		return FFIUInt8
	case Jbyte:
		return FFIInt8
	case Jchar:
		return FFIUInt16
	case Jshort:
		return FFIInt16
	case Jint, Jsize, JobjectRefType:
		return FFIInt32
	case Jlong:
		return FFIInt64
	case Jfloat:
		return FFIFloat
	case Jdouble:
		return FFIDouble
	}
	return FFIPointer
}

// Size returns the storage size of t for a pointer width of ptrSize bytes.
func (t NativeType) Size(ptrSize int) int {
	return t.FFI().Size(ptrSize)
}

// IsReference reports whether t is a Java object reference.
func (t NativeType) IsReference() bool {
	switch t {
	case Jobject, Jclass, Jstring, Jthrowable, Jweak, Jarray, JobjectArray,
		JbooleanArray, JbyteArray, JcharArray, JshortArray, JintArray,
		JlongArray, JfloatArray, JdoubleArray:
		return true
	}
	return false
}

// JNI return codes and versions.
const (
	JNI_OK        = 0
	JNI_ERR       = -1
	JNI_EDETACHED = -2
	JNI_EVERSION  = -3

	JNI_VERSION_1_1 = 0x00010001
	JNI_VERSION_1_2 = 0x00010002
	JNI_VERSION_1_4 = 0x00010004
	JNI_VERSION_1_6 = 0x00010006
)

// JNINativeMethodSize returns sizeof(JNINativeMethod) for a pointer width.
func JNINativeMethodSize(ptrSize int) int {
	return 3 * ptrSize
}

// JValueSize is sizeof(jvalue) on every architecture.
const JValueSize = 8
