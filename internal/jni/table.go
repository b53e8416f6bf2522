package jni

// TableKind identifies a function table.
type TableKind int

const (
	EnvTable TableKind = iota
	VMTable
)

func (k TableKind) String() string {
	if k == VMTable {
		return "JavaVM"
	}
	return "JNIEnv"
}

// Table sizes and the number of leading reserved slots in each.
const (
	EnvTableSize = len(envMethods)
	VMTableSize  = len(vmMethods)
	EnvReserved  = 4
	VMReserved   = 3
)

// MethodDescriptor describes one slot of a JNI function table.
type MethodDescriptor struct {
	Index    int
	Name     string
	Params   []NativeType
	Return   NativeType
	Reserved bool

	Table       TableKind
	Tail        Tail
	MethodIDArg int // index of the jmethodID parameter, -1 if none
	StringArgs  []int
	Region      *Region
	Bookkeeping Bookkeeping
}

// FixedParams returns the parameters before a trailing "...".
func (m *MethodDescriptor) FixedParams() []NativeType {
	if m.Tail == TailVariadic {
		return m.Params[:len(m.Params)-1]
	}
	return m.Params
}

// FFIParams returns the machine classes of the fixed parameters.
func (m *MethodDescriptor) FFIParams() []FFIType {
	fixed := m.FixedParams()
	out := make([]FFIType, len(fixed))
	for i, p := range fixed {
		out[i] = p.FFI()
	}
	return out
}

// IsVariadic reports whether the function ends in "...".
func (m *MethodDescriptor) IsVariadic() bool {
	return m.Tail == TailVariadic
}

// Intercepted reports whether the slot is wrapped when the table is shadowed.
func (m *MethodDescriptor) Intercepted() bool {
	return !m.Reserved
}

func (m *MethodDescriptor) String() string {
	return m.Table.String() + "->" + m.Name
}

var (
	envByName = make(map[string]*MethodDescriptor, len(envMethods))
	vmByName  = make(map[string]*MethodDescriptor, len(vmMethods))
)

func init() {
	for i := range envMethods {
		m := &envMethods[i]
		m.Table = EnvTable
		classify(m)
		if !m.Reserved {
			envByName[m.Name] = m
		}
	}
	for i := range vmMethods {
		m := &vmMethods[i]
		m.Table = VMTable
		classify(m)
		if !m.Reserved {
			vmByName[m.Name] = m
		}
	}
}

// EnvMethod returns the JNIEnv slot at index, or nil when out of range.
func EnvMethod(index int) *MethodDescriptor {
	if index < 0 || index >= len(envMethods) {
		return nil
	}
	return &envMethods[index]
}

// VMMethod returns the JavaVM slot at index, or nil when out of range.
func VMMethod(index int) *MethodDescriptor {
	if index < 0 || index >= len(vmMethods) {
		return nil
	}
	return &vmMethods[index]
}

// Methods returns every slot of the table, reserved ones included.
func Methods(k TableKind) []*MethodDescriptor {
	var out []*MethodDescriptor
	if k == VMTable {
		for i := range vmMethods {
			out = append(out, &vmMethods[i])
		}
		return out
	}
	for i := range envMethods {
		out = append(out, &envMethods[i])
	}
	return out
}

// LookupEnv finds a JNIEnv function by name.
func LookupEnv(name string) (*MethodDescriptor, bool) {
	m, ok := envByName[name]
	return m, ok
}

// LookupVM finds a JavaVM function by name.
func LookupVM(name string) (*MethodDescriptor, bool) {
	m, ok := vmByName[name]
	return m, ok
}

// Lookup finds a function by name in either table. JNIEnv wins for the
// names that exist in both.
func Lookup(name string) (*MethodDescriptor, bool) {
	if m, ok := envByName[name]; ok {
		return m, true
	}
	return LookupVM(name)
}
