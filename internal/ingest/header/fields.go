package header

import (
	"strings"
	"time"
)

// ReferenceConvention states which header convention supplied a membership
// or provenance list.
type ReferenceConvention int

// Reference conventions.
const (
	// RefNone means the file carries no list of that kind.
	RefNone ReferenceConvention = iota
	// RefURIList means explicit observation or plane URIs (MBRn / INPn).
	RefURIList
	// RefNameList means subsystem ids or bare file names (OBSn / PRVn).
	RefNameList
)

// Fields is the typed result of extracting one file's header.
type Fields struct {
	File string

	Collection      string
	ObservationID   string
	SubsystemID     string
	AssociationType string
	AssociationID   string

	Backend  string
	Frontend string
	InBeam   []string

	ObsType    string
	SampleMode string
	SwitchMode string
	Survey     string

	ProposalID    string
	ProposalPI    string
	ProposalTitle string

	Object   string
	Standard bool
	Moving   bool

	RA  *float64
	Dec *float64
	// Corners holds the footprint corner positions in degrees, in
	// bottom-left, bottom-right, top-right, top-left order.
	Corners *[4][2]float64

	DateObs     time.Time
	DateEnd     time.Time
	ReleaseDate time.Time

	Humidity    *float64
	Elevation   *float64
	Tau225      *float64
	WVMTau      *float64
	Seeing      *float64
	AmbientTemp *float64

	Product     string
	ProductID   string
	RunID       string
	Recipe      string
	ProcVersion string
	EngVersion  string
	ProcDate    *time.Time
	Reference   string
	Producer    string

	FilterMicrons *float64
	BandwidthUm   *float64
	RestFreqHz    *float64
	IFFreqHz      *float64
	IFChanSpHz    *float64
	BWMode        string
	SubsysNr      *int
	NumSubsystems *int
	Sideband      string
	SidebandMode  string
	FreqSignal    *Bounds
	FreqImage     *Bounds

	NumAxes  *int
	ProdType string

	Members       []string
	MemberRef     ReferenceConvention
	Inputs        []string
	ProvenanceRef ReferenceConvention
}

// Bounds is a lower/upper pair read straight from the header.
type Bounds struct {
	Lower float64
	Upper float64
}

// Heterodyne reports whether the file's backend produces spectral data.
func (f *Fields) Heterodyne() bool { return heterodyneBackends[f.Backend] }

// Algorithm returns the grouping algorithm implied by the association type,
// defaulting to a simple exposure when no association is declared.
func (f *Fields) Algorithm() string {
	if f.AssociationType == "" {
		return "exposure"
	}
	return associationAlgorithms[f.AssociationType]
}

// timestamp layouts accepted for DATE-OBS style values.
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Extract pulls the typed field set out of one file's primary header,
// consulting the optional first-extension header for catalog products. It
// is a pure function of its inputs and returns a ValidationError when a
// mandatory field is absent or a restricted field is out of domain.
func Extract(file string, primary, extension Raw) (*Fields, error) {
	f := &Fields{File: file}

	var ok bool
	if f.Collection, ok = primary.str(KeyInstream); !ok {
		return nil, missing(file, KeyInstream)
	}
	if f.ObservationID, ok = primary.str(KeyObsID); !ok {
		return nil, missing(file, KeyObsID)
	}
	f.SubsystemID, _ = primary.str(KeyObsIDSS)

	if f.AssociationType, ok = primary.str(KeyAsnType); ok {
		if _, known := associationAlgorithms[f.AssociationType]; !known {
			return nil, outOfDomain(file, KeyAsnType, f.AssociationType)
		}
		if f.AssociationType != "obs" {
			if f.AssociationID, ok = primary.str(KeyAsnID); !ok {
				return nil, missing(file, KeyAsnID)
			}
		}
	}

	if f.Backend, ok = primary.str(KeyBackend); !ok {
		return nil, missing(file, KeyBackend)
	}
	f.Backend = strings.ToUpper(f.Backend)
	if !permittedBackends[f.Backend] {
		return nil, outOfDomain(file, KeyBackend, f.Backend)
	}
	if f.Backend == "SCUBA-2" {
		f.Frontend = "SCUBA-2"
	} else if f.Frontend, ok = primary.str(KeyInstrument); ok {
		f.Frontend = strings.ToUpper(f.Frontend)
	}
	if f.Frontend != "" {
		if strings.HasPrefix(f.Frontend, "GLT") || !permittedFrontends[f.Frontend] {
			return nil, outOfDomain(file, KeyInstrument, f.Frontend)
		}
	}
	if inbeam, ok := primary.str(KeyInBeam); ok {
		f.InBeam = strings.Fields(strings.ToUpper(inbeam))
	}

	if f.ObsType, ok = primary.str(KeyObsType); !ok {
		return nil, missing(file, KeyObsType)
	}
	f.ObsType = strings.ToLower(f.ObsType)
	if !permittedObsTypes[f.ObsType] {
		return nil, outOfDomain(file, KeyObsType, f.ObsType)
	}
	if f.SampleMode, ok = primary.str(KeySampleMode); ok {
		f.SampleMode = strings.ToLower(f.SampleMode)
		// Historical headers wrote raster where scan was meant.
		if f.SampleMode == "raster" {
			f.SampleMode = "scan"
		}
		if !permittedSampleModes[f.SampleMode] {
			return nil, outOfDomain(file, KeySampleMode, f.SampleMode)
		}
	}
	if f.SwitchMode, ok = primary.str(KeySwitchMode); ok {
		f.SwitchMode = strings.ToLower(f.SwitchMode)
		if f.SwitchMode == "freq" {
			f.SwitchMode = "freqsw"
		}
		if !permittedSwitchModes[f.SwitchMode] {
			return nil, outOfDomain(file, KeySwitchMode, f.SwitchMode)
		}
	}
	if f.Survey, ok = primary.str(KeySurvey); ok {
		f.Survey = strings.ToUpper(f.Survey)
		if !permittedSurveys[f.Survey] {
			return nil, outOfDomain(file, KeySurvey, f.Survey)
		}
	}

	f.ProposalID, _ = primary.str(KeyProject)
	f.ProposalPI, _ = primary.str(KeyPI)
	f.ProposalTitle, _ = primary.str(KeyTitle)
	f.Object, _ = primary.str(KeyObject)
	f.Standard, _ = primary.boolean(KeyStandard)
	f.RA = floatPtr(primary, KeyObsRA)
	f.Dec = floatPtr(primary, KeyObsDec)
	// A target with no fixed position is moving.
	f.Moving = f.RA == nil || f.Dec == nil
	f.Corners = cornersPtr(primary)

	if s, ok := primary.str(KeyDateObs); ok {
		if f.DateObs, ok = parseTime(s); !ok {
			return nil, outOfDomain(file, KeyDateObs, s)
		}
	} else {
		return nil, missing(file, KeyDateObs)
	}
	if s, ok := primary.str(KeyDateEnd); ok {
		if f.DateEnd, ok = parseTime(s); !ok {
			return nil, outOfDomain(file, KeyDateEnd, s)
		}
	} else {
		return nil, missing(file, KeyDateEnd)
	}
	if s, ok := primary.str(KeyRelease); ok {
		if f.ReleaseDate, ok = parseTime(s); !ok {
			return nil, outOfDomain(file, KeyRelease, s)
		}
	}

	f.Humidity = clamped(primary, KeyHumidity, 0, 100)
	f.Elevation = clamped(primary, KeyElevation, -90, 90)
	f.Tau225 = floatPtr(primary, KeyTau225)
	f.WVMTau = floatPtr(primary, KeyWVMTau)
	if v, ok := primary.float(KeySeeing); ok && v > 0 {
		f.Seeing = &v
	}
	f.AmbientTemp = floatPtr(primary, KeyAmbientTemp)

	f.Product, _ = primary.str(KeyProduct)
	f.ProductID, _ = primary.str(KeyProductID)
	f.RunID, _ = primary.str(KeyRunID)
	f.Recipe, _ = primary.str(KeyRecipe)
	f.ProcVersion, _ = primary.str(KeyProcVersion)
	f.EngVersion, _ = primary.str(KeyEngVersion)
	if s, ok := primary.str(KeyDPDate); ok {
		if t, valid := parseTime(s); valid {
			f.ProcDate = &t
		} else {
			return nil, outOfDomain(file, KeyDPDate, s)
		}
	}
	f.Reference, _ = primary.str(KeyReference)
	f.Producer, _ = primary.str(KeyProducer)

	f.FilterMicrons = floatPtr(primary, KeyFilter)
	f.BandwidthUm = floatPtr(primary, KeyBandwidth)
	f.RestFreqHz = floatPtr(primary, KeyRestFreq)
	f.IFFreqHz = floatPtr(primary, KeyIFFreq)
	f.IFChanSpHz = floatPtr(primary, KeyIFChanSp)
	f.BWMode, _ = primary.str(KeyBWMode)
	if v, ok := primary.integer(KeySubsysNr); ok {
		f.SubsysNr = &v
	}
	if v, ok := primary.integer(KeyNSubsys); ok {
		f.NumSubsystems = &v
	}
	f.Sideband, _ = primary.str(KeySideband)
	f.SidebandMode, _ = primary.str(KeySBMode)
	f.FreqSignal = boundsPtr(primary, KeyFreqLow, KeyFreqHigh)
	f.FreqImage = boundsPtr(primary, KeyImageLow, KeyImageHigh)

	if v, ok := primary.integer(KeyNumAxes); ok {
		f.NumAxes = &v
	}
	f.ProdType, _ = primary.str(KeyProdType)
	if f.ProdType == "" && extension != nil {
		f.ProdType, _ = extension.str(KeyProdType)
	}

	if members := primary.indexed(KeyMemberCount, PrefixMember); len(members) > 0 {
		f.Members, f.MemberRef = members, RefURIList
	} else if members := primary.indexed(KeyObsCount, PrefixObs); len(members) > 0 {
		f.Members, f.MemberRef = members, RefNameList
	}
	if inputs := primary.indexed(KeyInputCount, PrefixInput); len(inputs) > 0 {
		f.Inputs, f.ProvenanceRef = inputs, RefURIList
	} else if inputs := primary.indexed(KeyPrevCount, PrefixPrev); len(inputs) > 0 {
		f.Inputs, f.ProvenanceRef = inputs, RefNameList
	}

	return f, nil
}

// cornerKeys pairs the RA and Dec keywords of each footprint corner.
var cornerKeys = [4][2]string{
	{KeyCornerRABL, KeyCornerDecBL},
	{KeyCornerRABR, KeyCornerDecBR},
	{KeyCornerRATR, KeyCornerDecTR},
	{KeyCornerRATL, KeyCornerDecTL},
}

// cornersPtr reads the four corner positions; a partially present set is
// treated as absent.
func cornersPtr(r Raw) *[4][2]float64 {
	var corners [4][2]float64
	for i, keys := range cornerKeys {
		ra, ok := r.float(keys[0])
		if !ok {
			return nil
		}
		dec, ok := r.float(keys[1])
		if !ok {
			return nil
		}
		corners[i] = [2]float64{ra, dec}
	}
	return &corners
}

func floatPtr(r Raw, key string) *float64 {
	if v, ok := r.float(key); ok {
		return &v
	}
	return nil
}

func clamped(r Raw, key string, lo, hi float64) *float64 {
	v, ok := r.float(key)
	if !ok {
		return nil
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return &v
}

func boundsPtr(r Raw, loKey, hiKey string) *Bounds {
	lo, okLo := r.float(loKey)
	hi, okHi := r.float(hiKey)
	if !okLo || !okHi {
		return nil
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return &Bounds{Lower: lo, Upper: hi}
}
