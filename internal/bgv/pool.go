package bgv

import (
	"github.com/Benny93/bgv-go/internal/pool"
)

// poolObject decodes a pool reference or an inline new entry. New entries are
// always materialized, whatever the mode, so the pool stays complete for the
// rest of the file. Existing references are checked against the pool in
// both modes; skipping returns nil.
func (p *Parser) poolObject(m mode) (pool.Object, error) {
	token, err := p.d.ReadInt8()
	if err != nil {
		return nil, err
	}
	switch token {
	case PoolNull:
		return nil, nil
	case PoolNew:
		return p.poolEntry()
	case PoolString, PoolEnum, PoolClass, PoolMethod, PoolNodeClass,
		PoolField, PoolSignature, PoolSourcePosition, PoolNode:
		id, err := p.d.ReadUint16()
		if err != nil {
			return nil, err
		}
		obj, ok := p.pool[id]
		if !ok {
			return nil, p.formatErr("unknown BGV pool object %d (tag 0x%x)", id, uint8(token))
		}
		if m == skip {
			return nil, nil
		}
		return obj, nil
	}
	return nil, p.formatErr("unknown token 0x%x in BGV pool object", uint8(token))
}

// poolEntry decodes a new pool entry, having already read PoolNew, and
// stores it under the id the stream gives it.
func (p *Parser) poolEntry() (pool.Object, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	id, err := p.d.ReadUint16()
	if err != nil {
		return nil, err
	}
	kind, err := p.d.ReadInt8()
	if err != nil {
		return nil, err
	}

	var obj pool.Object
	switch kind {
	case PoolString:
		s, present, err := p.string(materialize)
		if err != nil {
			return nil, err
		}
		if present {
			obj = pool.String(s)
		}
	case PoolEnum:
		obj, err = p.enumEntry()
	case PoolClass:
		obj, err = p.classEntry()
	case PoolMethod:
		obj, err = p.methodEntry()
	case PoolNodeClass:
		obj, err = p.nodeClassEntry()
	case PoolField:
		obj, err = p.fieldEntry()
	case PoolSignature:
		obj, err = p.signatureEntry()
	case PoolSourcePosition:
		obj, err = p.sourcePositionEntry()
	case PoolNode:
		obj, err = p.nodeRefEntry()
	default:
		return nil, p.formatErr("unknown BGV pool type 0x%x", uint8(kind))
	}
	if err != nil {
		return nil, err
	}

	p.pool[id] = obj
	if p.observer != nil {
		p.observer(id, obj)
	}
	return obj, nil
}

func (p *Parser) enumEntry() (pool.Object, error) {
	obj, err := p.poolObject(materialize)
	if err != nil {
		return nil, err
	}
	class, ok := obj.(*pool.Class)
	if !ok || !class.IsEnum {
		return nil, p.formatErr("BGV enum value without an enum class")
	}
	ordinal, err := p.d.ReadInt32()
	if err != nil {
		return nil, err
	}
	if ordinal < 0 || int(ordinal) >= len(class.Values) {
		return nil, p.formatErr("unknown BGV enum ordinal %d in %s", ordinal, class.TypeName)
	}
	return &pool.Enum{Class: class, Ordinal: ordinal, Value: class.Values[ordinal]}, nil
}

func (p *Parser) classEntry() (pool.Object, error) {
	name, _, err := p.string(materialize)
	if err != nil {
		return nil, err
	}
	kind, err := p.d.ReadInt8()
	if err != nil {
		return nil, err
	}
	switch kind {
	case Klass:
		return &pool.Class{TypeName: name}, nil
	case EnumKlass:
		n, err := p.count32()
		if err != nil {
			return nil, err
		}
		values := make([]pool.Object, 0, min(n, 1024))
		for i := 0; i < n; i++ {
			v, err := p.poolObject(materialize)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return &pool.Class{TypeName: name, Values: values, IsEnum: true}, nil
	}
	return nil, p.formatErr("unknown BGV pool class token 0x%x", uint8(kind))
}

func (p *Parser) methodEntry() (pool.Object, error) {
	declaringClass, err := p.poolObject(materialize)
	if err != nil {
		return nil, err
	}
	name, err := p.poolObject(materialize)
	if err != nil {
		return nil, err
	}
	signature, err := p.poolObject(materialize)
	if err != nil {
		return nil, err
	}
	modifiers, err := p.d.ReadInt32()
	if err != nil {
		return nil, err
	}
	codeLength, err := p.d.ReadInt32()
	if err != nil {
		return nil, err
	}
	var code []byte
	if codeLength != -1 {
		if codeLength < -1 {
			return nil, p.formatErr("negative method code length %d", codeLength)
		}
		if code, err = p.d.ReadBytes(int64(codeLength)); err != nil {
			return nil, err
		}
	}
	return &pool.Method{
		DeclaringClass: declaringClass,
		MethodName:     name,
		Signature:      signature,
		Modifiers:      modifiers,
		Code:           code,
	}, nil
}

func (p *Parser) nodeClassEntry() (pool.Object, error) {
	class, err := p.poolObject(materialize)
	if err != nil {
		return nil, err
	}
	template, _, err := p.string(materialize)
	if err != nil {
		return nil, err
	}
	inputs, err := p.edgeSchemas(true)
	if err != nil {
		return nil, err
	}
	outputs, err := p.edgeSchemas(false)
	if err != nil {
		return nil, err
	}
	return &pool.NodeClass{
		Class:        class,
		NameTemplate: template,
		Inputs:       inputs,
		Outputs:      outputs,
	}, nil
}

func (p *Parser) edgeSchemas(inputs bool) ([]pool.EdgeSchema, error) {
	n, err := p.count16()
	if err != nil {
		return nil, err
	}
	schemas := make([]pool.EdgeSchema, 0, n)
	for i := 0; i < n; i++ {
		indirect, err := p.bool(materialize)
		if err != nil {
			return nil, err
		}
		name, err := p.poolObject(materialize)
		if err != nil {
			return nil, err
		}
		var typ pool.Object
		if inputs {
			if typ, err = p.poolObject(materialize); err != nil {
				return nil, err
			}
		}
		schemas = append(schemas, pool.EdgeSchema{Direct: !indirect, Name: name, Type: typ})
	}
	return schemas, nil
}

func (p *Parser) fieldEntry() (pool.Object, error) {
	class, err := p.poolObject(materialize)
	if err != nil {
		return nil, err
	}
	name, err := p.poolObject(materialize)
	if err != nil {
		return nil, err
	}
	typ, err := p.poolObject(materialize)
	if err != nil {
		return nil, err
	}
	modifiers, err := p.d.ReadInt32()
	if err != nil {
		return nil, err
	}
	return &pool.Field{DeclaringClass: class, FieldName: name, TypeName: typ, Modifiers: modifiers}, nil
}

func (p *Parser) signatureEntry() (pool.Object, error) {
	n, err := p.count16()
	if err != nil {
		return nil, err
	}
	args := make([]pool.Object, 0, n)
	for i := 0; i < n; i++ {
		arg, err := p.poolObject(materialize)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	ret, err := p.poolObject(materialize)
	if err != nil {
		return nil, err
	}
	return &pool.Signature{Args: args, Return: ret}, nil
}

func (p *Parser) sourcePositionEntry() (pool.Object, error) {
	method, err := p.poolObject(materialize)
	if err != nil {
		return nil, err
	}
	bci, err := p.d.ReadInt32()
	if err != nil {
		return nil, err
	}

	var locations []pool.Location
	for {
		uri, err := p.poolObject(materialize)
		if err != nil {
			return nil, err
		}
		if uri == nil {
			break
		}
		file, _, err := p.string(materialize)
		if err != nil {
			return nil, err
		}
		var nums [3]int32
		for i := range nums {
			if nums[i], err = p.d.ReadInt32(); err != nil {
				return nil, err
			}
		}
		locations = append(locations, pool.Location{
			URI:   uri,
			File:  file,
			Line:  nums[0],
			Start: nums[1],
			End:   nums[2],
		})
	}

	callerObj, err := p.poolObject(materialize)
	if err != nil {
		return nil, err
	}
	pos := &pool.SourcePosition{Method: method, BCI: bci, Locations: locations}
	if callerObj != nil {
		caller, ok := callerObj.(*pool.SourcePosition)
		if !ok {
			return nil, p.formatErr("BGV source position caller is not a source position")
		}
		pos.Caller = caller
	}
	return pos, nil
}

func (p *Parser) nodeRefEntry() (pool.Object, error) {
	id, err := p.d.ReadInt32()
	if err != nil {
		return nil, err
	}
	class, err := p.poolObject(materialize)
	if err != nil {
		return nil, err
	}
	return &pool.NodeRef{NodeID: id, NodeClass: class}, nil
}
