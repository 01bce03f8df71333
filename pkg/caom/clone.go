package caom

// Clone returns a deep copy of the observation. Store implementations rely
// on this to hand out records that callers can mutate freely.
func (o *Observation) Clone() *Observation {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Proposal = clonePtr(o.Proposal)
	cp.Target = clonePtr(o.Target)
	cp.Telescope = clonePtr(o.Telescope)
	cp.Environment = cloneEnvironment(o.Environment)
	cp.Instrument = cloneInstrument(o.Instrument)
	cp.MetaRelease = clonePtr(o.MetaRelease)
	cp.Members = append([]ObservationURI(nil), o.Members...)
	if o.Planes != nil {
		cp.Planes = make(map[string]*Plane, len(o.Planes))
		for id, p := range o.Planes {
			cp.Planes[id] = p.Clone()
		}
	}
	return &cp
}

// Clone returns a deep copy of the plane.
func (p *Plane) Clone() *Plane {
	if p == nil {
		return nil
	}
	cp := *p
	cp.MetaRelease = clonePtr(p.MetaRelease)
	cp.DataRelease = clonePtr(p.DataRelease)
	cp.Provenance = cloneProvenance(p.Provenance)
	if p.Metrics != nil {
		m := *p.Metrics
		m.SourceNumberDensity = clonePtr(p.Metrics.SourceNumberDensity)
		cp.Metrics = &m
	}
	if p.Artifacts != nil {
		cp.Artifacts = make(map[string]*Artifact, len(p.Artifacts))
		for uri, a := range p.Artifacts {
			cp.Artifacts[uri] = a.Clone()
		}
	}
	return &cp
}

// Clone returns a deep copy of the artifact.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	cp := *a
	if a.Parts != nil {
		cp.Parts = make(map[string]*Part, len(a.Parts))
		for name, part := range a.Parts {
			cp.Parts[name] = part.Clone()
		}
	}
	if a.Custom != nil {
		cp.Custom = make(map[string]any, len(a.Custom))
		for k, v := range a.Custom {
			cp.Custom[k] = v
		}
	}
	return &cp
}

// Clone returns a deep copy of the part.
func (p *Part) Clone() *Part {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Chunks != nil {
		cp.Chunks = make([]*Chunk, len(p.Chunks))
		for i, c := range p.Chunks {
			cp.Chunks[i] = c.Clone()
		}
	}
	return &cp
}

// Clone returns a deep copy of the chunk.
func (c *Chunk) Clone() *Chunk {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Position != nil {
		pos := *c.Position
		pos.Bounds.Points = append([]Point(nil), c.Position.Bounds.Points...)
		cp.Position = &pos
	}
	if c.Energy != nil {
		en := *c.Energy
		en.Ranges = append([]Interval(nil), c.Energy.Ranges...)
		cp.Energy = &en
	}
	if c.Time != nil {
		tm := *c.Time
		tm.Samples = append([]Interval(nil), c.Time.Samples...)
		cp.Time = &tm
	}
	return &cp
}

func cloneProvenance(p *Provenance) *Provenance {
	if p == nil {
		return nil
	}
	cp := *p
	cp.LastExecuted = clonePtr(p.LastExecuted)
	cp.Inputs = append([]PlaneURI(nil), p.Inputs...)
	cp.Keywords = append([]string(nil), p.Keywords...)
	return &cp
}

func cloneInstrument(i *Instrument) *Instrument {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Keywords = append([]string(nil), i.Keywords...)
	return &cp
}

func cloneEnvironment(e *Environment) *Environment {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Tau = clonePtr(e.Tau)
	cp.WavelengthTau = clonePtr(e.WavelengthTau)
	cp.Elevation = clonePtr(e.Elevation)
	cp.Humidity = clonePtr(e.Humidity)
	cp.Seeing = clonePtr(e.Seeing)
	cp.AmbientTemp = clonePtr(e.AmbientTemp)
	return &cp
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
