package hwio

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// MustInitRegs initializes all the registers of a bank (a pointer to struct)
// from their "hwio" struct tags. Besides the mapping options documented on
// Table.MapBank, the tag accepts:
//
//	reset=0x12      Value at power-up/reset.
//	rwmask=0xF0     Bits that can be written (default: all).
//	readonly        Register ignores writes (logged as errors).
//	writeonly       Register reads as zero (logged as errors).
//	rcb[=Method]    Read callback, default method name is ReadFIELD.
//	wcb[=Method]    Write callback, default method name is WriteFIELD.
//	pcb[=Method]    Peek callback, default method name is PeekFIELD.
//	size=0x800      Mem only: size of the buffer.
//	vsize=0x2000    Mem only: size of the mapped area (mirrors the buffer).
//
// FIELD is the upper-cased field name. It panics on malformed tags or missing
// callbacks since those are programming errors.
func MustInitRegs(data any) {
	if err := initRegs(data); err != nil {
		panic(err)
	}
}

// ResetRegs puts all tagged registers of a bank back to their reset value.
func ResetRegs(data any) {
	forEachReg(data, func(f reflect.StructField, ptr any, tag regTag) error {
		switch r := ptr.(type) {
		case *Reg8:
			r.Value = uint8(tag.reset)
		case *Reg16:
			r.Value = uint16(tag.reset)
		case *Mem:
			clear(r.Data)
		}
		return nil
	})
}

type regTag struct {
	offset    uint16
	hasOffset bool
	bank      int

	reset  uint64
	rwmask uint64
	hasRW  bool

	size, vsize int

	readonly, writeonly bool

	rcb, wcb, pcb string
}

func parseTag(fieldName, tag string) (regTag, error) {
	var rt regTag
	for _, opt := range strings.Split(tag, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key, val, hasVal := strings.Cut(opt, "=")

		num := func() (uint64, error) {
			if !hasVal {
				return 0, fmt.Errorf("field %s: option %q requires a value", fieldName, key)
			}
			n, err := strconv.ParseUint(val, 0, 64)
			if err != nil {
				return 0, fmt.Errorf("field %s: option %q: %w", fieldName, key, err)
			}
			return n, nil
		}
		cbname := func(prefix string) string {
			if hasVal {
				return val
			}
			return prefix + strings.ToUpper(fieldName)
		}

		var err error
		var n uint64
		switch key {
		case "offset":
			n, err = num()
			rt.offset, rt.hasOffset = uint16(n), true
		case "bank":
			n, err = num()
			rt.bank = int(n)
		case "reset":
			rt.reset, err = num()
		case "rwmask":
			rt.rwmask, err = num()
			rt.hasRW = true
		case "size":
			n, err = num()
			rt.size = int(n)
		case "vsize":
			n, err = num()
			rt.vsize = int(n)
		case "readonly":
			rt.readonly = true
		case "writeonly":
			rt.writeonly = true
		case "rcb":
			rt.rcb = cbname("Read")
		case "wcb":
			rt.wcb = cbname("Write")
		case "pcb":
			rt.pcb = cbname("Peek")
		default:
			err = fmt.Errorf("field %s: unknown hwio option %q", fieldName, key)
		}
		if err != nil {
			return rt, err
		}
	}
	return rt, nil
}

func forEachReg(data any, fn func(f reflect.StructField, ptr any, tag regTag) error) error {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("hwio: %T is not a pointer to struct", data)
	}

	sv := v.Elem()
	st := sv.Type()
	for i := range st.NumField() {
		f := st.Field(i)
		tagstr, ok := f.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		tag, err := parseTag(f.Name, tagstr)
		if err != nil {
			return err
		}
		if err := fn(f, sv.Field(i).Addr().Interface(), tag); err != nil {
			return err
		}
	}
	return nil
}

func initRegs(data any) error {
	bank := reflect.ValueOf(data)

	method := func(name string, want reflect.Type) (reflect.Value, error) {
		m := bank.MethodByName(name)
		if !m.IsValid() {
			return m, fmt.Errorf("hwio: %T has no method %s", data, name)
		}
		if m.Type() != want {
			return m, fmt.Errorf("hwio: %T.%s has type %s, want %s", data, name, m.Type(), want)
		}
		return m, nil
	}

	return forEachReg(data, func(f reflect.StructField, ptr any, tag regTag) error {
		var flags RWFlags
		if tag.readonly {
			flags |= ReadOnlyFlag
		}
		if tag.writeonly {
			flags |= WriteOnlyFlag
		}

		switch r := ptr.(type) {
		case *Reg8:
			r.Name = f.Name
			r.Value = uint8(tag.reset)
			r.Flags = flags
			if tag.hasRW {
				r.RoMask = ^uint8(tag.rwmask)
			}
			if tag.rcb != "" {
				m, err := method(tag.rcb, reflect.TypeOf(r.ReadCb))
				if err != nil {
					return err
				}
				r.ReadCb = m.Interface().(func(uint8) uint8)
			}
			if tag.pcb != "" {
				m, err := method(tag.pcb, reflect.TypeOf(r.PeekCb))
				if err != nil {
					return err
				}
				r.PeekCb = m.Interface().(func(uint8) uint8)
			}
			if tag.wcb != "" {
				m, err := method(tag.wcb, reflect.TypeOf(r.WriteCb))
				if err != nil {
					return err
				}
				r.WriteCb = m.Interface().(func(uint8, uint8))
			}

		case *Reg16:
			r.Name = f.Name
			r.Value = uint16(tag.reset)
			r.Flags = flags
			if tag.hasRW {
				r.RoMask = ^uint16(tag.rwmask)
			}
			if tag.rcb != "" {
				m, err := method(tag.rcb, reflect.TypeOf(r.ReadCb))
				if err != nil {
					return err
				}
				r.ReadCb = m.Interface().(func(uint16) uint16)
			}
			if tag.pcb != "" {
				m, err := method(tag.pcb, reflect.TypeOf(r.PeekCb))
				if err != nil {
					return err
				}
				r.PeekCb = m.Interface().(func(uint16) uint16)
			}
			if tag.wcb != "" {
				m, err := method(tag.wcb, reflect.TypeOf(r.WriteCb))
				if err != nil {
					return err
				}
				r.WriteCb = m.Interface().(func(uint16, uint16))
			}

		case *Mem:
			if tag.size == 0 {
				return fmt.Errorf("hwio: mem %s: missing size", f.Name)
			}
			r.Name = f.Name
			r.Data = make([]byte, tag.size)
			r.VSize = tag.size
			if tag.vsize != 0 {
				r.VSize = tag.vsize
			}
			if tag.readonly {
				r.Flags = MemFlag8ReadOnly
			}

		default:
			return fmt.Errorf("hwio: field %s has unsupported type %T", f.Name, ptr)
		}
		return nil
	})
}

type bankReg struct {
	offset uint16
	regPtr any
}

func bankGetRegs(bank any, bankNum int) ([]bankReg, error) {
	var regs []bankReg
	err := forEachReg(bank, func(f reflect.StructField, ptr any, tag regTag) error {
		if !tag.hasOffset || tag.bank != bankNum {
			return nil
		}
		regs = append(regs, bankReg{offset: tag.offset, regPtr: ptr})
		return nil
	})
	return regs, err
}
