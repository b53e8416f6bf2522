package engine

import (
	"fmt"
	"math"

	"github.com/zboralski/jniscope/internal/jni"
)

// Value is a raw argument or result with its declared type.
type Value struct {
	Type jni.NativeType
	Raw  uint64
}

// Float returns the value as a float64 for jfloat and jdouble values.
func (v Value) Float() float64 {
	switch v.Type {
	case jni.Jfloat:
		return float64(math.Float32frombits(uint32(v.Raw)))
	case jni.Jdouble:
		return math.Float64frombits(v.Raw)
	}
	return float64(v.Raw)
}

// Int returns the value sign-extended according to its type.
func (v Value) Int() int64 {
	switch v.Type.FFI() {
	case jni.FFIInt8:
		return int64(int8(v.Raw))
	case jni.FFIInt16:
		return int64(int16(v.Raw))
	case jni.FFIInt32:
		return int64(int32(v.Raw))
	}
	return int64(v.Raw)
}

func (v Value) String() string {
	switch v.Type.FFI() {
	case jni.FFIFloat, jni.FFIDouble:
		return fmt.Sprintf("%g", v.Float())
	case jni.FFIInt8, jni.FFIInt16, jni.FFIInt32, jni.FFIInt64:
		return fmt.Sprintf("%d", v.Int())
	case jni.FFIVoid:
		return "void"
	case jni.FFIUInt8, jni.FFIUInt16:
		return fmt.Sprintf("%d", v.Raw)
	}
	return fmt.Sprintf("0x%x", v.Raw)
}

// Frame is one backtrace entry.
type Frame struct {
	Address uint64
	Module  string
	Symbol  string
	Offset  uint64
}

func (f Frame) String() string {
	switch {
	case f.Symbol != "":
		return fmt.Sprintf("0x%x %s!%s+0x%x", f.Address, f.Module, f.Symbol, f.Offset)
	case f.Module != "":
		return fmt.Sprintf("0x%x %s+0x%x", f.Address, f.Module, f.Offset)
	}
	return fmt.Sprintf("0x%x", f.Address)
}

// CallRecord is one completed intercepted call.
type CallRecord struct {
	CallType   jni.TableKind
	Method     *jni.MethodDescriptor
	Args       []Value
	JavaArgs   []Value
	JavaMethod *jni.JavaMethod
	Return     Value
	ThreadID   uint64
	Timestamp  int64 // milliseconds since the engine started
	Caller     uint64
	Backtrace  []Frame
}

// JavaParamTypes returns the native types of the Java arguments, or nil when
// the method ID was not resolved.
func (r *CallRecord) JavaParamTypes() []jni.NativeType {
	if r.JavaMethod == nil {
		return nil
	}
	return r.JavaMethod.NativeParams()
}

func (r *CallRecord) String() string {
	s := fmt.Sprintf("[%d] %s(", r.ThreadID, r.Method)
	for i, a := range r.Args {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	for _, a := range r.JavaArgs {
		s += ", " + a.String()
	}
	return s + ") = " + r.Return.String()
}
