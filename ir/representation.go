package ir

import "fmt"

// Representation is how a value is physically held: a tagged object pointer
// or one of the unboxed forms.
type Representation uint8

const (
	NoRepresentation Representation = iota
	Tagged
	UntaggedPointer
	UnboxedInt32
	UnboxedUint32
	UnboxedInt64
	UnboxedDouble
	UnboxedFloat32x4
	UnboxedInt32x4
	UnboxedFloat64x2
	PairOfTagged
)

var representationNames = [...]string{
	NoRepresentation: "none",
	Tagged:           "tagged",
	UntaggedPointer:  "untagged",
	UnboxedInt32:     "int32",
	UnboxedUint32:    "uint32",
	UnboxedInt64:     "int64",
	UnboxedDouble:    "double",
	UnboxedFloat32x4: "float32x4",
	UnboxedInt32x4:   "int32x4",
	UnboxedFloat64x2: "float64x2",
	PairOfTagged:     "pair",
}

func (r Representation) String() string {
	if int(r) < len(representationNames) {
		return representationNames[r]
	}
	return fmt.Sprintf("rep(%d)", uint8(r))
}

// ClassID identifies a runtime class. Only the ids the backend dispatches on
// are named; user classes are allocated above NumPredefinedCids.
type ClassID uint16

const (
	IllegalCid ClassID = iota
	NullCid
	BoolCid
	SmiCid
	MintCid
	DoubleCid
	ClosureCid
	ContextCid
	FieldCid
	TypeCid
	TypeArgumentsCid
	ArrayCid
	ImmutableArrayCid
	GrowableObjectArrayCid
	OneByteStringCid
	TwoByteStringCid
	ExternalOneByteStringCid
	ExternalTwoByteStringCid
	TypedDataInt8ArrayCid
	TypedDataUint8ArrayCid
	TypedDataUint8ClampedArrayCid
	TypedDataInt16ArrayCid
	TypedDataUint16ArrayCid
	TypedDataInt32ArrayCid
	TypedDataUint32ArrayCid
	TypedDataInt64ArrayCid
	TypedDataFloat32ArrayCid
	TypedDataFloat64ArrayCid
	TypedDataFloat32x4ArrayCid
	TypedDataInt32x4ArrayCid
	TypedDataFloat64x2ArrayCid
	ExternalTypedDataUint8ArrayCid
	ExternalTypedDataUint8ClampedArrayCid

	NumPredefinedCids
)

var classIDNames = map[ClassID]string{
	IllegalCid:                            "Illegal",
	NullCid:                               "Null",
	BoolCid:                               "Bool",
	SmiCid:                                "Smi",
	MintCid:                               "Mint",
	DoubleCid:                             "Double",
	ClosureCid:                            "Closure",
	ContextCid:                            "Context",
	FieldCid:                              "Field",
	TypeCid:                               "Type",
	TypeArgumentsCid:                      "TypeArguments",
	ArrayCid:                              "Array",
	ImmutableArrayCid:                     "ImmutableArray",
	GrowableObjectArrayCid:                "GrowableObjectArray",
	OneByteStringCid:                      "OneByteString",
	TwoByteStringCid:                      "TwoByteString",
	ExternalOneByteStringCid:              "ExternalOneByteString",
	ExternalTwoByteStringCid:              "ExternalTwoByteString",
	TypedDataInt8ArrayCid:                 "Int8Array",
	TypedDataUint8ArrayCid:                "Uint8Array",
	TypedDataUint8ClampedArrayCid:         "Uint8ClampedArray",
	TypedDataInt16ArrayCid:                "Int16Array",
	TypedDataUint16ArrayCid:               "Uint16Array",
	TypedDataInt32ArrayCid:                "Int32Array",
	TypedDataUint32ArrayCid:               "Uint32Array",
	TypedDataInt64ArrayCid:                "Int64Array",
	TypedDataFloat32ArrayCid:              "Float32Array",
	TypedDataFloat64ArrayCid:              "Float64Array",
	TypedDataFloat32x4ArrayCid:            "Float32x4Array",
	TypedDataInt32x4ArrayCid:              "Int32x4Array",
	TypedDataFloat64x2ArrayCid:            "Float64x2Array",
	ExternalTypedDataUint8ArrayCid:        "ExternalUint8Array",
	ExternalTypedDataUint8ClampedArrayCid: "ExternalUint8ClampedArray",
}

func (c ClassID) String() string {
	if name, ok := classIDNames[c]; ok {
		return name
	}
	return fmt.Sprintf("cid%d", uint16(c))
}

// ClassIDByName resolves a printed class id name.
func ClassIDByName(name string) (ClassID, bool) {
	for cid, n := range classIDNames {
		if n == name {
			return cid, true
		}
	}
	return IllegalCid, false
}

// ElementRepresentation returns the representation of values held by an
// indexable object of class cid. ok is false for classes that are not
// indexable.
func ElementRepresentation(cid ClassID) (rep Representation, ok bool) {
	switch cid {
	case ArrayCid, ImmutableArrayCid,
		TypedDataInt8ArrayCid, TypedDataUint8ArrayCid, TypedDataUint8ClampedArrayCid,
		ExternalTypedDataUint8ArrayCid, ExternalTypedDataUint8ClampedArrayCid,
		TypedDataInt16ArrayCid, TypedDataUint16ArrayCid,
		OneByteStringCid, TwoByteStringCid,
		ExternalOneByteStringCid, ExternalTwoByteStringCid:
		return Tagged, true
	case TypedDataInt32ArrayCid:
		return UnboxedInt32, true
	case TypedDataUint32ArrayCid:
		return UnboxedUint32, true
	case TypedDataInt64ArrayCid:
		return UnboxedInt64, true
	case TypedDataFloat32ArrayCid, TypedDataFloat64ArrayCid:
		return UnboxedDouble, true
	case TypedDataInt32x4ArrayCid:
		return UnboxedInt32x4, true
	case TypedDataFloat32x4ArrayCid:
		return UnboxedFloat32x4, true
	case TypedDataFloat64x2ArrayCid:
		return UnboxedFloat64x2, true
	}
	return NoRepresentation, false
}

// ElementSize returns the width in bytes of one element of an indexable
// class, or 0 when cid is not indexable.
func ElementSize(cid ClassID) int {
	switch cid {
	case TypedDataInt8ArrayCid, TypedDataUint8ArrayCid, TypedDataUint8ClampedArrayCid,
		ExternalTypedDataUint8ArrayCid, ExternalTypedDataUint8ClampedArrayCid,
		OneByteStringCid, ExternalOneByteStringCid:
		return 1
	case TypedDataInt16ArrayCid, TypedDataUint16ArrayCid,
		TwoByteStringCid, ExternalTwoByteStringCid:
		return 2
	case TypedDataInt32ArrayCid, TypedDataUint32ArrayCid, TypedDataFloat32ArrayCid:
		return 4
	case ArrayCid, ImmutableArrayCid, TypedDataInt64ArrayCid, TypedDataFloat64ArrayCid:
		return WordSize
	case TypedDataFloat32x4ArrayCid, TypedDataInt32x4ArrayCid, TypedDataFloat64x2ArrayCid:
		return 16
	}
	return 0
}
