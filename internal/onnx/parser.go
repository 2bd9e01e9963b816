package onnx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// ParseFile parses an ONNX model from a file on disk.
//
//nolint:gosec // G304: the model path is caller-provided by design.
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse parses an ONNX model from raw bytes.
func Parse(data []byte) (*ModelProto, error) {
	m := &ModelProto{}
	if err := decodeModel(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return m, nil
}

// Protobuf wire types.
const (
	wireVarint = 0
	wire64Bit  = 1
	wireBytes  = 2
	wire32Bit  = 5
)

var errTruncated = errors.New("truncated message")

// decoder is a cursor over one protobuf message body.
type decoder struct {
	buf []byte
	off int
}

// walk iterates the fields of a message body, handing each tag to visit.
// visit must consume the field's payload (or call skip).
func walk(buf []byte, visit func(d *decoder, field, wire int) error) error {
	d := &decoder{buf: buf}
	for d.off < len(d.buf) {
		tag, err := d.varint()
		if err != nil {
			return err
		}
		if err := visit(d, int(tag>>3), int(tag&0x7)); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) varint() (uint64, error) {
	var v uint64
	var shift uint
	for {
		if d.off >= len(d.buf) {
			return 0, errTruncated
		}
		b := d.buf[d.off]
		d.off++
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, errors.New("varint overflow")
		}
	}
}

func (d *decoder) int64() (int64, error) {
	v, err := d.varint()
	return int64(v), err //nolint:gosec // G115: protobuf varints fit in int64.
}

func (d *decoder) int32() (int32, error) {
	v, err := d.varint()
	return int32(v), err //nolint:gosec // G115: ONNX enum values fit in int32.
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.varint()
	if err != nil {
		return nil, err
	}
	end := d.off + int(n) //nolint:gosec // G115: length-delimited field fits in int.
	if end < d.off || end > len(d.buf) {
		return nil, errTruncated
	}
	b := d.buf[d.off:end]
	d.off = end
	return b, nil
}

func (d *decoder) str() (string, error) {
	b, err := d.bytes()
	return string(b), err
}

func (d *decoder) float32() (float32, error) {
	if d.off+4 > len(d.buf) {
		return 0, errTruncated
	}
	bits := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return math.Float32frombits(bits), nil
}

// int64s handles a repeated int64 field, packed or not.
func (d *decoder) int64s(wire int, dst []int64) ([]int64, error) {
	if wire != wireBytes {
		v, err := d.int64()
		if err != nil {
			return dst, err
		}
		return append(dst, v), nil
	}
	body, err := d.bytes()
	if err != nil {
		return dst, err
	}
	sub := &decoder{buf: body}
	for sub.off < len(sub.buf) {
		v, err := sub.int64()
		if err != nil {
			return dst, err
		}
		dst = append(dst, v)
	}
	return dst, nil
}

// float32s handles a packed repeated float field.
func (d *decoder) float32s(dst []float32) ([]float32, error) {
	body, err := d.bytes()
	if err != nil {
		return dst, err
	}
	for i := 0; i+4 <= len(body); i += 4 {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(body[i:])))
	}
	return dst, nil
}

// float64s handles a packed repeated double field.
func (d *decoder) float64s(dst []float64) ([]float64, error) {
	body, err := d.bytes()
	if err != nil {
		return dst, err
	}
	for i := 0; i+8 <= len(body); i += 8 {
		dst = append(dst, math.Float64frombits(binary.LittleEndian.Uint64(body[i:])))
	}
	return dst, nil
}

func (d *decoder) skip(wire int) error {
	switch wire {
	case wireVarint:
		_, err := d.varint()
		return err
	case wire64Bit:
		if d.off+8 > len(d.buf) {
			return errTruncated
		}
		d.off += 8
		return nil
	case wireBytes:
		_, err := d.bytes()
		return err
	case wire32Bit:
		if d.off+4 > len(d.buf) {
			return errTruncated
		}
		d.off += 4
		return nil
	default:
		return fmt.Errorf("unknown wire type: %d", wire)
	}
}

func decodeModel(buf []byte, m *ModelProto) error {
	return walk(buf, func(d *decoder, field, wire int) error {
		var err error
		switch field {
		case 1: // ir_version
			m.IRVersion, err = d.int64()
		case 2: // producer_name
			m.ProducerName, err = d.str()
		case 3: // producer_version
			m.ProducerVersion, err = d.str()
		case 4: // domain
			m.Domain, err = d.str()
		case 5: // model_version
			m.ModelVersion, err = d.int64()
		case 6: // doc_string
			m.DocString, err = d.str()
		case 7: // graph
			var body []byte
			if body, err = d.bytes(); err == nil {
				m.Graph = &GraphProto{}
				err = decodeGraph(body, m.Graph)
			}
		case 8: // opset_import
			var body []byte
			if body, err = d.bytes(); err == nil {
				var opset OperatorSetID
				if err = decodeOperatorSetID(body, &opset); err == nil {
					m.OpsetImport = append(m.OpsetImport, opset)
				}
			}
		case 14: // metadata_props
			var body []byte
			if body, err = d.bytes(); err == nil {
				var entry StringStringEntry
				if err = decodeStringStringEntry(body, &entry); err == nil {
					m.MetadataProps = append(m.MetadataProps, entry)
				}
			}
		default:
			err = d.skip(wire)
		}
		return err
	})
}

func decodeGraph(buf []byte, g *GraphProto) error {
	return walk(buf, func(d *decoder, field, wire int) error {
		var err error
		switch field {
		case 1: // node
			var body []byte
			if body, err = d.bytes(); err == nil {
				var node NodeProto
				if err = decodeNode(body, &node); err == nil {
					g.Nodes = append(g.Nodes, node)
				}
			}
		case 2: // name
			g.Name, err = d.str()
		case 5: // initializer
			var body []byte
			if body, err = d.bytes(); err == nil {
				var tensor TensorProto
				if err = decodeTensor(body, &tensor); err == nil {
					g.Initializers = append(g.Initializers, tensor)
				}
			}
		case 10: // doc_string
			g.DocString, err = d.str()
		case 11: // input
			var body []byte
			if body, err = d.bytes(); err == nil {
				var vi ValueInfoProto
				if err = decodeValueInfo(body, &vi); err == nil {
					g.Inputs = append(g.Inputs, vi)
				}
			}
		case 12: // output
			var body []byte
			if body, err = d.bytes(); err == nil {
				var vi ValueInfoProto
				if err = decodeValueInfo(body, &vi); err == nil {
					g.Outputs = append(g.Outputs, vi)
				}
			}
		case 13: // value_info
			var body []byte
			if body, err = d.bytes(); err == nil {
				var vi ValueInfoProto
				if err = decodeValueInfo(body, &vi); err == nil {
					g.ValueInfo = append(g.ValueInfo, vi)
				}
			}
		default:
			err = d.skip(wire)
		}
		return err
	})
}

func decodeNode(buf []byte, n *NodeProto) error {
	return walk(buf, func(d *decoder, field, wire int) error {
		var err error
		switch field {
		case 1: // input
			var s string
			if s, err = d.str(); err == nil {
				n.Inputs = append(n.Inputs, s)
			}
		case 2: // output
			var s string
			if s, err = d.str(); err == nil {
				n.Outputs = append(n.Outputs, s)
			}
		case 3: // name
			n.Name, err = d.str()
		case 4: // op_type
			n.OpType, err = d.str()
		case 5: // attribute
			var body []byte
			if body, err = d.bytes(); err == nil {
				var attr AttributeProto
				if err = decodeAttribute(body, &attr); err == nil {
					n.Attributes = append(n.Attributes, attr)
				}
			}
		case 7: // domain
			n.Domain, err = d.str()
		default:
			err = d.skip(wire)
		}
		return err
	})
}

func decodeTensor(buf []byte, t *TensorProto) error {
	return walk(buf, func(d *decoder, field, wire int) error {
		var err error
		switch field {
		case 1: // dims
			t.Dims, err = d.int64s(wire, t.Dims)
		case 2: // data_type
			t.DataType, err = d.int32()
		case 4: // float_data
			t.FloatData, err = d.float32s(t.FloatData)
		case 5: // int32_data
			var vals []int64
			if vals, err = d.int64s(wire, nil); err == nil {
				for _, v := range vals {
					t.Int32Data = append(t.Int32Data, int32(v)) //nolint:gosec // G115: ONNX int32_data fits in int32.
				}
			}
		case 7: // int64_data
			t.Int64Data, err = d.int64s(wire, t.Int64Data)
		case 8: // name
			t.Name, err = d.str()
		case 9: // raw_data
			t.RawData, err = d.bytes()
		case 10: // double_data
			t.DoubleData, err = d.float64s(t.DoubleData)
		default:
			err = d.skip(wire)
		}
		return err
	})
}

func decodeValueInfo(buf []byte, vi *ValueInfoProto) error {
	return walk(buf, func(d *decoder, field, wire int) error {
		var err error
		switch field {
		case 1: // name
			vi.Name, err = d.str()
		case 2: // type
			var body []byte
			if body, err = d.bytes(); err == nil {
				vi.Type = &TypeProto{}
				err = decodeType(body, vi.Type)
			}
		default:
			err = d.skip(wire)
		}
		return err
	})
}

func decodeType(buf []byte, t *TypeProto) error {
	return walk(buf, func(d *decoder, field, wire int) error {
		var err error
		switch field {
		case 1: // tensor_type
			var body []byte
			if body, err = d.bytes(); err == nil {
				t.TensorType = &TensorTypeProto{}
				err = decodeTensorType(body, t.TensorType)
			}
		default:
			err = d.skip(wire)
		}
		return err
	})
}

func decodeTensorType(buf []byte, t *TensorTypeProto) error {
	return walk(buf, func(d *decoder, field, wire int) error {
		var err error
		switch field {
		case 1: // elem_type
			t.ElemType, err = d.int32()
		case 2: // shape
			var body []byte
			if body, err = d.bytes(); err == nil {
				t.Shape = &TensorShapeProto{}
				err = decodeTensorShape(body, t.Shape)
			}
		default:
			err = d.skip(wire)
		}
		return err
	})
}

func decodeTensorShape(buf []byte, s *TensorShapeProto) error {
	return walk(buf, func(d *decoder, field, wire int) error {
		var err error
		switch field {
		case 1: // dim
			var body []byte
			if body, err = d.bytes(); err == nil {
				var dim DimensionProto
				if err = decodeDimension(body, &dim); err == nil {
					s.Dims = append(s.Dims, dim)
				}
			}
		default:
			err = d.skip(wire)
		}
		return err
	})
}

func decodeDimension(buf []byte, dim *DimensionProto) error {
	return walk(buf, func(d *decoder, field, wire int) error {
		var err error
		switch field {
		case 1: // dim_value
			dim.DimValue, err = d.int64()
		case 2: // dim_param
			dim.DimParam, err = d.str()
		default:
			err = d.skip(wire)
		}
		return err
	})
}

func decodeAttribute(buf []byte, a *AttributeProto) error {
	return walk(buf, func(d *decoder, field, wire int) error {
		var err error
		switch field {
		case 1: // name
			a.Name, err = d.str()
		case 2: // f
			a.F, err = d.float32()
		case 3: // i
			a.I, err = d.int64()
		case 4: // s
			a.S, err = d.bytes()
		case 5: // t
			var body []byte
			if body, err = d.bytes(); err == nil {
				a.T = &TensorProto{}
				err = decodeTensor(body, a.T)
			}
		case 7: // floats
			a.Floats, err = d.float32s(a.Floats)
		case 8: // ints
			a.Ints, err = d.int64s(wire, a.Ints)
		case 9: // strings
			var body []byte
			if body, err = d.bytes(); err == nil {
				a.Strings = append(a.Strings, body)
			}
		case 10: // tensors
			var body []byte
			if body, err = d.bytes(); err == nil {
				var tensor TensorProto
				if err = decodeTensor(body, &tensor); err == nil {
					a.Tensors = append(a.Tensors, tensor)
				}
			}
		case 20: // type
			a.Type, err = d.int32()
		default:
			err = d.skip(wire)
		}
		return err
	})
}

func decodeOperatorSetID(buf []byte, o *OperatorSetID) error {
	return walk(buf, func(d *decoder, field, wire int) error {
		var err error
		switch field {
		case 1: // domain
			o.Domain, err = d.str()
		case 2: // version
			o.Version, err = d.int64()
		default:
			err = d.skip(wire)
		}
		return err
	})
}

func decodeStringStringEntry(buf []byte, e *StringStringEntry) error {
	return walk(buf, func(d *decoder, field, wire int) error {
		var err error
		switch field {
		case 1: // key
			e.Key, err = d.str()
		case 2: // value
			e.Value, err = d.str()
		default:
			err = d.skip(wire)
		}
		return err
	})
}
