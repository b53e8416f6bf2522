package jni

import (
	"errors"
	"reflect"
	"testing"
)

func TestTableLayout(t *testing.T) {
	if EnvTableSize != 233 {
		t.Fatalf("EnvTableSize = %d, want 233", EnvTableSize)
	}
	if VMTableSize != 8 {
		t.Fatalf("VMTableSize = %d, want 8", VMTableSize)
	}
	for i, m := range Methods(EnvTable) {
		if m.Index != i {
			t.Fatalf("env slot %d has index %d", i, m.Index)
		}
		if m.Reserved != (i < EnvReserved) {
			t.Errorf("env slot %d (%s) reserved = %v", i, m.Name, m.Reserved)
		}
		if !m.Reserved && (len(m.Params) == 0 || m.Params[0] != JNIEnvPtr) {
			t.Errorf("%s does not take JNIEnv* first", m.Name)
		}
	}
	for i, m := range Methods(VMTable) {
		if m.Reserved != (i < VMReserved) {
			t.Errorf("vm slot %d (%s) reserved = %v", i, m.Name, m.Reserved)
		}
		if !m.Reserved && m.Params[0] != JavaVMPtr {
			t.Errorf("%s does not take JavaVM* first", m.Name)
		}
	}
}

func TestWellKnownSlots(t *testing.T) {
	tests := []struct {
		name  string
		index int
	}{
		{"GetVersion", 4},
		{"FindClass", 6},
		{"GetMethodID", 33},
		{"CallIntMethod", 49},
		{"CallIntMethodV", 50},
		{"CallIntMethodA", 51},
		{"GetFieldID", 94},
		{"GetStaticMethodID", 113},
		{"NewStringUTF", 167},
		{"RegisterNatives", 215},
		{"GetJavaVM", 219},
		{"GetObjectRefType", 232},
	}
	for _, tt := range tests {
		m, ok := LookupEnv(tt.name)
		if !ok {
			t.Errorf("LookupEnv(%q) failed", tt.name)
			continue
		}
		if m.Index != tt.index {
			t.Errorf("%s index = %d, want %d", tt.name, m.Index, tt.index)
		}
	}

	m, ok := LookupVM("GetEnv")
	if !ok || m.Index != 6 {
		t.Errorf("LookupVM(GetEnv) = %v, %v", m, ok)
	}
	if _, ok := Lookup("NotAJNIMethod"); ok {
		t.Error("Lookup accepted an unknown name")
	}
	if m, ok := Lookup("AttachCurrentThread"); !ok || m.Table != VMTable {
		t.Errorf("Lookup(AttachCurrentThread) = %v, %v", m, ok)
	}
}

func TestReturnTypeCorrections(t *testing.T) {
	for name, want := range map[string]NativeType{
		"GetPrimitiveArrayCritical": VoidPtr,
		"GetStringCritical":         JcharPtr,
		"GetDirectBufferAddress":    VoidPtr,
	} {
		m, _ := LookupEnv(name)
		if m.Return != want {
			t.Errorf("%s returns %s, want %s", name, m.Return, want)
		}
	}
}

func TestClassification(t *testing.T) {
	call, _ := LookupEnv("CallIntMethod")
	if call.Tail != TailVariadic || call.MethodIDArg != 2 {
		t.Errorf("CallIntMethod: tail=%s methodID=%d", call.Tail, call.MethodIDArg)
	}
	if got := call.FixedParams(); len(got) != 3 {
		t.Errorf("CallIntMethod fixed params = %v", got)
	}

	nv, _ := LookupEnv("CallNonvirtualVoidMethod")
	if nv.MethodIDArg != 3 {
		t.Errorf("CallNonvirtualVoidMethod methodID index = %d, want 3", nv.MethodIDArg)
	}

	v, _ := LookupEnv("CallStaticObjectMethodV")
	if v.Tail != TailVaList || v.IsVariadic() {
		t.Errorf("CallStaticObjectMethodV tail = %s", v.Tail)
	}
	a, _ := LookupEnv("NewObjectA")
	if a.Tail != TailJValues {
		t.Errorf("NewObjectA tail = %s", a.Tail)
	}

	fc, _ := LookupEnv("FindClass")
	if !reflect.DeepEqual(fc.StringArgs, []int{1}) {
		t.Errorf("FindClass string args = %v", fc.StringArgs)
	}
	gm, _ := LookupEnv("GetMethodID")
	if gm.Bookkeeping != BookMethodID || !reflect.DeepEqual(gm.StringArgs, []int{2, 3}) {
		t.Errorf("GetMethodID = %+v", gm)
	}

	r, _ := LookupEnv("GetIntArrayRegion")
	if r.Region == nil || r.Region.Elem != Jint || r.Region.Buf != 4 {
		t.Errorf("GetIntArrayRegion region = %+v", r.Region)
	}
	s, _ := LookupEnv("GetStringUTFRegion")
	if s.Region == nil || s.Region.Elem != Jbyte {
		t.Errorf("GetStringUTFRegion region = %+v", s.Region)
	}

	for name, want := range map[string]Bookkeeping{
		"GetStaticFieldID": BookFieldID,
		"GetJavaVM":        BookJavaVM,
		"RegisterNatives":  BookRegisterNatives,
	} {
		m, _ := LookupEnv(name)
		if m.Bookkeeping != want {
			t.Errorf("%s bookkeeping = %d, want %d", name, m.Bookkeeping, want)
		}
	}
	for _, name := range []string{"GetEnv", "AttachCurrentThread", "AttachCurrentThreadAsDaemon"} {
		m, _ := LookupVM(name)
		if m.Bookkeeping != BookEnvOut {
			t.Errorf("%s bookkeeping = %d", name, m.Bookkeeping)
		}
	}
}

func TestParseSignature(t *testing.T) {
	tests := []struct {
		sig    string
		params []NativeType
		ret    NativeType
	}{
		{"()V", []NativeType{}, Void},
		{"(I)I", []NativeType{Jint}, Jint},
		{"(ILjava/lang/String;)V", []NativeType{Jint, Jstring}, Void},
		{"(Ljava/lang/Class;[B[[I)Ljava/lang/Object;", []NativeType{Jclass, JbyteArray, JobjectArray}, Jobject},
		{"(ZBCSJFD)[Ljava/lang/String;", []NativeType{Jboolean, Jbyte, Jchar, Jshort, Jlong, Jfloat, Jdouble}, JobjectArray},
	}
	for _, tt := range tests {
		m, err := NewJavaMethod("m", tt.sig)
		if err != nil {
			t.Errorf("NewJavaMethod(%q): %v", tt.sig, err)
			continue
		}
		got := m.NativeParams()
		if len(got) != len(tt.params) || (len(got) > 0 && !reflect.DeepEqual(got, tt.params)) {
			t.Errorf("%s params = %v, want %v", tt.sig, got, tt.params)
		}
		if m.NativeReturn() != tt.ret {
			t.Errorf("%s return = %s, want %s", tt.sig, m.NativeReturn(), tt.ret)
		}
	}
}

func TestParseSignatureMalformed(t *testing.T) {
	for _, sig := range []string{
		"",
		"I)V",
		"(I",
		"(V)V",
		"(Ljava/lang/String)V",
		"(I)",
		"(I)VV",
		"(Q)V",
		"(L;)V",
	} {
		if _, _, err := ParseSignature(sig); !errors.Is(err, ErrMalformedSignature) {
			t.Errorf("ParseSignature(%q) error = %v, want ErrMalformedSignature", sig, err)
		}
	}
}

func TestFFIClasses(t *testing.T) {
	tests := []struct {
		t    NativeType
		ffi  FFIType
		size int
	}{
		{Jboolean, FFIUInt8, 1},
		{Jchar, FFIUInt16, 2},
		{Jint, FFIInt32, 4},
		{Jlong, FFIInt64, 8},
		{Jfloat, FFIFloat, 4},
		{Jdouble, FFIDouble, 8},
		{Jstring, FFIPointer, 4},
		{VaList, FFIPointer, 4},
	}
	for _, tt := range tests {
		if got := tt.t.FFI(); got != tt.ffi {
			t.Errorf("%s.FFI() = %s, want %s", tt.t, got, tt.ffi)
		}
		if got := tt.t.Size(4); got != tt.size {
			t.Errorf("%s.Size(4) = %d, want %d", tt.t, got, tt.size)
		}
	}
	if FFIFloat.Promote() != FFIDouble || FFIUInt8.Promote() != FFIInt32 {
		t.Error("default argument promotion")
	}
	if nt, ok := ParseNativeType("JNIEnv*"); !ok || nt != JNIEnvPtr {
		t.Errorf("ParseNativeType(JNIEnv*) = %v, %v", nt, ok)
	}
}
