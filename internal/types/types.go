package types

// DataType identifies the Go representation of a register value.
type DataType uint8

const (
	TypeUInt8 DataType = iota
	TypeUInt16
	TypeUInt32
	TypeUInt64
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeDateTime // uint32 unix timestamp; reported as UInt32 by TypeOf
	TypeList     // []Value
	numTypes
)

var typeNames = [numTypes]string{
	"UInt8", "UInt16", "UInt32", "UInt64",
	"Int8", "Int16", "Int32", "Int64",
	"Float32", "Float64", "String", "DateTime", "List",
}

// fixed sizes in bytes; 0 marks variable-length types.
var fixedSizes = [numTypes]int{1, 2, 4, 8, 1, 2, 4, 8, 4, 8, 0, 4, 0}

// Name returns the type name, "Unknown" for values out of range.
func (dt DataType) Name() string {
	if dt >= numTypes {
		return "Unknown"
	}
	return typeNames[dt]
}

// FixedSize returns the encoded size of fixed-size types, 0 otherwise.
func (dt DataType) FixedSize() int {
	if dt >= numTypes {
		return 0
	}
	return fixedSizes[dt]
}

// IsNumeric reports integer, float and DateTime types.
func (dt DataType) IsNumeric() bool {
	return dt <= TypeFloat64 || dt == TypeDateTime
}

// TypeOf reports the DataType of a non-empty value.
func TypeOf(v Value) (DataType, bool) {
	switch v.(type) {
	case uint8:
		return TypeUInt8, true
	case uint16:
		return TypeUInt16, true
	case uint32:
		return TypeUInt32, true
	case uint64:
		return TypeUInt64, true
	case int8:
		return TypeInt8, true
	case int16:
		return TypeInt16, true
	case int32:
		return TypeInt32, true
	case int64:
		return TypeInt64, true
	case float32:
		return TypeFloat32, true
	case float64:
		return TypeFloat64, true
	case string:
		return TypeString, true
	case []Value:
		return TypeList, true
	}
	return 0, false
}
