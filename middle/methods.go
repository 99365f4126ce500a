package middle

import (
	"github.com/veldt-lang/veldt/analysis"
	"github.com/veldt-lang/veldt/ir"
)

// normalizeMethods fills in every reachable output method: the
// specialization strategy gets the first offer, then the signature is
// rewritten to scalar slots (spilling the excess) and the body handed to the
// SSA rewriter. Abstract methods keep a marker and no body.
func (p *Pass) normalizeMethods() error {
	for _, c := range p.mod.Classes {
		if !c.Facts.Live {
			continue
		}
		for _, m := range c.Methods {
			ref := analysis.MethodRef{Class: c.ID, Name: m.Name}
			irm, reached := p.methods[ref]
			if !reached {
				if !m.Live {
					continue
				}
				irm = p.methodFor(m)
			}
			if err := p.normalizeMethod(m, irm); err != nil {
				return err
			}
		}
	}
	return p.genComparators()
}

func (p *Pass) normalizeMethod(m *analysis.Method, irm *ir.Method) error {
	if spec, handled := p.specializer.Specialize(m); handled {
		irm.Params = spec.Params
		irm.Results = spec.Results
		irm.Body = spec.Body
		irm.Spilled = spec.Spilled
		return nil
	}
	sig, err := p.normSignature(m)
	if err != nil {
		return err
	}
	irm.Params = sig.Params
	irm.Results = sig.Results
	irm.Spilled = append(sig.ParamSpill, sig.ResultSpill...)
	if m.Abstract {
		irm.Abstract = true
		return nil
	}
	body, err := p.rewriter.Rewrite(m, sig)
	if err != nil {
		return err
	}
	irm.Body = body
	return nil
}

// normSignature flattens a method's parameter and return lists to scalar
// slots and spills whatever exceeds the calling convention. One signature is
// one overflow generation: its parameter and return spills never share
// slots, but two different signatures' spills do.
func (p *Pass) normSignature(m *analysis.Method) (*Signature, error) {
	params, _, err := p.normSlots(m.Params)
	if err != nil {
		return nil, err
	}
	results, _, err := p.normSlots(m.Results)
	if err != nil {
		return nil, err
	}
	sig := &Signature{}
	p.overflow.nextGeneration()
	if max := p.cfg.MaxParamSlots; max > 0 && len(params) > max {
		for _, t := range params[max:] {
			sig.ParamSpill = append(sig.ParamSpill, p.overflow.slot(t))
		}
		params = params[:max]
	}
	if max := p.cfg.MaxReturnSlots; max > 0 && len(results) > max {
		for _, t := range results[max:] {
			sig.ResultSpill = append(sig.ResultSpill, p.overflow.slot(t))
		}
		results = results[:max]
	}
	sig.Params, sig.Results = params, results
	if len(sig.ParamSpill)+len(sig.ResultSpill) > 0 {
		p.logger.Debug("signature spilled",
			"section", "middle.methods", "method", m.Name,
			"params", len(sig.ParamSpill), "results", len(sig.ResultSpill))
	}
	return sig, nil
}

// genComparators emits the structural equality method of every flattened
// variant root: both operands arrive as full slot sequences and are compared
// slot by slot.
func (p *Pass) genComparators() error {
	for _, c := range p.mod.Classes {
		if !c.IsRoot() || p.flatState[c.ID] != flatDone {
			continue
		}
		flat := p.flats[c.ID]
		slots := flat.Norm.Slots()
		params := make([]analysis.Type, 0, 2*len(slots))
		params = append(append(params, slots...), slots...)

		var spilled []*ir.Field
		p.overflow.nextGeneration()
		if max := p.cfg.MaxParamSlots; max > 0 && len(params) > max {
			for _, t := range params[max:] {
				spilled = append(spilled, p.overflow.slot(t))
			}
			params = params[:max]
		}
		eq := &ir.Method{
			Name:    c.Name + ".equals",
			Owner:   c.ID,
			Params:  params,
			Results: []analysis.Type{analysis.BoolType},
			Body:    &ir.Body{Synthetic: "flat-equals"},
			Spilled: spilled,
		}
		p.methods[analysis.MethodRef{Class: c.ID, Name: eq.Name}] = eq
		p.out.Methods = append(p.out.Methods, eq)
	}
	return nil
}
