package header

// Header keyword vocabulary. Every keyword read anywhere in the ingestion
// engine is declared here; scripts/validate_header_vocab enforces that rule.
const (
	KeyInstream    = "INSTREAM"
	KeyObsID       = "OBSID"
	KeyObsIDSS     = "OBSIDSS"
	KeyAsnType     = "ASN_TYPE"
	KeyAsnID       = "ASN_ID"
	KeyBackend     = "BACKEND"
	KeyInstrument  = "INSTRUME"
	KeyInBeam      = "INBEAM"
	KeyObsType     = "OBS_TYPE"
	KeySampleMode  = "SAM_MODE"
	KeySwitchMode  = "SW_MODE"
	KeySurvey      = "SURVEY"
	KeyProject     = "PROJECT"
	KeyPI          = "PI"
	KeyTitle       = "TITLE"
	KeyObject      = "OBJECT"
	KeyStandard    = "STDSTAR"
	KeyObsRA       = "OBSRA"
	KeyObsDec      = "OBSDEC"
	KeyCornerRABL  = "OBSRABL"
	KeyCornerDecBL = "OBSDECBL"
	KeyCornerRABR  = "OBSRABR"
	KeyCornerDecBR = "OBSDECBR"
	KeyCornerRATR  = "OBSRATR"
	KeyCornerDecTR = "OBSDECTR"
	KeyCornerRATL  = "OBSRATL"
	KeyCornerDecTL = "OBSDECTL"
	KeyDateObs     = "DATE-OBS"
	KeyDateEnd     = "DATE-END"
	KeyRelease     = "RELEASE"
	KeyHumidity    = "HUMSTART"
	KeyElevation   = "ELSTART"
	KeyTau225      = "TAU225ST"
	KeyWVMTau      = "WVMTAUST"
	KeySeeing      = "SEEINGST"
	KeyAmbientTemp = "ATSTART"
	KeyProduct     = "PRODUCT"
	KeyProductID   = "PRODID"
	KeyRunID       = "DPRCINST"
	KeyRecipe      = "RECIPE"
	KeyProcVersion = "PROCVERS"
	KeyEngVersion  = "ENGVERS"
	KeyDPDate      = "DPDATE"
	KeyReference   = "REFERENC"
	KeyProducer    = "ORIGIN"
	KeyFilter      = "FILTER"
	KeyBandwidth   = "BANDWID"
	KeyRestFreq    = "RESTFREQ"
	KeyIFFreq      = "IFFREQ"
	KeyIFChanSp    = "IFCHANSP"
	KeyBWMode      = "BWMODE"
	KeySubsysNr    = "SUBSYSNR"
	KeyNSubsys     = "NSUBSYS"
	KeySideband    = "OBS_SB"
	KeySBMode      = "SB_MODE"
	KeyTemp        = "TEMPSCAL"
	KeyNumAxes     = "NAXIS"
	KeyMemberCount = "MBRCNT"
	KeyObsCount    = "OBSCNT"
	KeyInputCount  = "INPCNT"
	KeyPrevCount   = "PRVCNT"
	KeyProdType    = "PRODTYPE"
	KeyFreqLow     = "FREQ_SIG_LO"
	KeyFreqHigh    = "FREQ_SIG_HI"
	KeyImageLow    = "FREQ_IMG_LO"
	KeyImageHigh   = "FREQ_IMG_HI"
)

// Indexed keyword prefixes; the extractor appends a 1-based index.
const (
	PrefixMember = "MBR"
	PrefixObs    = "OBS"
	PrefixInput  = "INP"
	PrefixPrev   = "PRV"
)

// Backends that produce heterodyne spectral data.
var heterodyneBackends = map[string]bool{
	"ACSIS": true,
	"DAS":   true,
	"AOSC":  true,
}

// Backends the archive accepts.
var permittedBackends = map[string]bool{
	"ACSIS":   true,
	"DAS":     true,
	"AOSC":    true,
	"SCUBA":   true,
	"SCUBA-2": true,
}

// Frontends the archive accepts. Anything prefixed GLT belongs to a
// different facility and is rejected outright.
var permittedFrontends = map[string]bool{
	"HARP":    true,
	"RXA3":    true,
	"RXA3M":   true,
	"RXB3":    true,
	"RXWB":    true,
	"RXWD2":   true,
	"UU":      true,
	"AWEOWEO": true,
	"ALAIHI":  true,
	"SCUBA-2": true,
}

// Observation types the archive accepts.
var permittedObsTypes = map[string]bool{
	"science":    true,
	"pointing":   true,
	"focus":      true,
	"skydip":     true,
	"flatfield":  true,
	"setup":      true,
	"heterodyne": true,
}

// Sample modes, after the raster to scan repair.
var permittedSampleModes = map[string]bool{
	"jiggle": true,
	"grid":   true,
	"scan":   true,
}

// Switching modes, after the freq to freqsw repair.
var permittedSwitchModes = map[string]bool{
	"chop":   true,
	"freqsw": true,
	"none":   true,
	"pssw":   true,
	"self":   true,
}

// Survey acronyms accepted in the SURVEY keyword.
var permittedSurveys = map[string]bool{
	"CLS":   true,
	"DDS":   true,
	"GBS":   true,
	"JPS":   true,
	"NGS":   true,
	"SASSY": true,
	"SLS":   true,
}

// Association types and the grouping algorithm each implies.
var associationAlgorithms = map[string]string{
	"obs":    "exposure",
	"night":  "custom",
	"custom": "custom",
	"public": "public",
}
