package identity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"obsingest/internal/ingest/header"
)

// RawProductID renders the product identifier of a raw plane referenced by
// a membership or provenance list. Hybrid planes merge several subsystems
// and use the raw-hybrid prefix.
func RawProductID(hybrid bool, f *header.Fields) (string, error) {
	prefix := "raw"
	if hybrid {
		prefix = "raw-hybrid"
	}
	if f.Heterodyne() {
		return FormatProductID(prefix, f)
	}
	if f.FilterMicrons == nil {
		return "", &IdentifierError{File: f.File, Reason: "continuum raw product lacks a filter wavelength"}
	}
	return fmt.Sprintf("%s-%.0fum", prefix, *f.FilterMicrons), nil
}

// subsystemPattern matches <instrument>_<obsnum>_<YYYYMMDD>T<HHMMSS>_<subsysnr>.
var subsystemPattern = regexp.MustCompile(`^(scuba2|acsis|DAS|AOSC|scuba)_(\d+)_(\d{8})[tT](\d{6})_\d+$`)

// subsystemIrregular maps the subsystem identifiers whose derived
// observation identifier does not follow the padding convention at all.
var subsystemIrregular = map[string]string{
	"scuba2_18_20120703T075007_850": "scuba2_00018_20120703T075008",
}

// ObservationIDFromSubsystem recovers the observation identifier from a
// subsystem identifier: the trailing subsystem number is dropped and the
// observation number is re-rendered under the convention in force on the
// observation date. SCUBA-2 identifiers before 2009-10-04 and ACSIS
// identifiers from 2006-10-01 through 2007-05-21 carry the number
// unpadded; all other SCUBA-2, ACSIS and DAS identifiers pad it to five
// digits.
func ObservationIDFromSubsystem(subsystemID string) (string, error) {
	if obsid, ok := subsystemIrregular[subsystemID]; ok {
		return obsid, nil
	}
	m := subsystemPattern.FindStringSubmatch(subsystemID)
	if m == nil {
		return "", fmt.Errorf("subsystem id %q does not match <inst>_<obsnum>_<utdate>T<uttime>_<subsysnr>", subsystemID)
	}
	instrument, date, clock := m[1], m[3], m[4]
	obsNum, err := strconv.Atoi(m[2])
	if err != nil {
		return "", fmt.Errorf("subsystem id %q: %v", subsystemID, err)
	}

	padded := true
	switch instrument {
	case "scuba2":
		padded = date >= "20091004"
	case "acsis":
		padded = date < "20061001" || date > "20070521"
	case "DAS":
	default:
		return "", fmt.Errorf("subsystem id %q: no observation id convention for instrument %s", subsystemID, instrument)
	}
	number := strconv.Itoa(obsNum)
	if padded {
		number = fmt.Sprintf("%05d", obsNum)
	}
	return fmt.Sprintf("%s_%s_%sT%s", instrument, number, date, clock), nil
}

// NormalizeRunID canonicalises a provenance run identifier. Bare decimal
// recipe instance numbers are rendered in the jac-%09d form so that the
// same job is keyed identically regardless of which header wrote it.
func NormalizeRunID(runID string) string {
	runID = strings.TrimSpace(runID)
	if n, err := strconv.ParseUint(runID, 10, 64); err == nil {
		return fmt.Sprintf("jac-%09d", n)
	}
	return runID
}
