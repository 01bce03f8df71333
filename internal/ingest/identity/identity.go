// Package identity derives the keys that place a file in the archive
// hierarchy: the grouping algorithm, the observation identifier, and the
// product identifier, together with the calibration level and data product
// type implied by the declared product.
package identity

import (
	"fmt"
	"strings"

	"obsingest/internal/ingest/header"
	"obsingest/pkg/caom"
)

// IdentifierError reports a file whose headers cannot be resolved into an
// (algorithm, observationID, productID) triple.
type IdentifierError struct {
	File   string
	Reason string
}

// Error implements the error interface.
func (e *IdentifierError) Error() string {
	return fmt.Sprintf("file %s: %s", e.File, e.Reason)
}

// Identity places one file in the hierarchy.
type Identity struct {
	Algorithm       caom.Algorithm
	ObservationID   string
	ProductID       string
	ScienceProduct  string
	Calibration     caom.CalibrationLevel
	DataProductType caom.DataProductType
}

// scienceProducts maps a declared product token to its science product
// family. Products absent from this table are auxiliary and inherit the
// plane of their family's science product.
var scienceProducts = map[string]string{
	"reduced": "reduced",
	"rsp":     "reduced",
	"rimg":    "reduced",
	"cube":    "cube",
	"healpix": "healpix",
	"hpxrsp":  "healpix",
	"hpxrimg": "healpix",
}

// calibrationLevels maps a science product family to its calibration level.
var calibrationLevels = map[string]caom.CalibrationLevel{
	"reduced":    caom.CalibrationCalibrated,
	"cube":       caom.CalibrationRawStandard,
	"healpix":    caom.CalibrationCalibrated,
	"point-cat":  caom.CalibrationProduct,
	"extent-cat": caom.CalibrationProduct,
	"peak-cat":   caom.CalibrationProduct,
}

// JCMT is the collection whose product identifiers are derived rather than
// trusted from headers.
const JCMT = "JCMT"

// Resolve determines the identity of a processed data product. External
// collections trust the explicit product identifier header; JCMT pipeline
// products derive one from the science product family plus the filter
// wavelength (continuum) or rest frequency, bandwidth mode and subsystem
// number (heterodyne).
func Resolve(f *header.Fields) (Identity, error) {
	id := Identity{Algorithm: caom.Algorithm(f.Algorithm())}
	if id.Algorithm == "" {
		return id, &IdentifierError{File: f.File, Reason: fmt.Sprintf("association type %q has no grouping algorithm", f.AssociationType)}
	}
	if id.Algorithm.Composite() {
		id.ObservationID = f.AssociationID
	} else {
		id.ObservationID = f.ObservationID
	}
	if id.ObservationID == "" {
		return id, &IdentifierError{File: f.File, Reason: "no observation identifier could be derived"}
	}

	if f.Collection != JCMT {
		if f.ProductID == "" {
			return id, &IdentifierError{File: f.File, Reason: "external collection product lacks an explicit product id"}
		}
		id.ProductID = f.ProductID
		id.ScienceProduct, _, _ = strings.Cut(f.ProductID, "-")
	} else {
		family, ok := scienceProductFamily(f.Product)
		if !ok {
			return id, &IdentifierError{File: f.File, Reason: fmt.Sprintf("product %q is not a science product", f.Product)}
		}
		id.ScienceProduct = family
		productID, err := FormatProductID(family, f)
		if err != nil {
			return id, err
		}
		id.ProductID = productID
	}

	if level, ok := calibrationLevels[id.ScienceProduct]; ok {
		id.Calibration = level
	} else {
		id.Calibration = caom.CalibrationCalibrated
	}
	id.DataProductType = dataProductType(id.ScienceProduct, f)
	return id, nil
}

// scienceProductFamily resolves a product token to its family. Catalog
// products name their own family.
func scienceProductFamily(product string) (string, bool) {
	if family, ok := scienceProducts[product]; ok {
		return family, true
	}
	if strings.HasSuffix(product, "-cat") {
		return product, true
	}
	return "", false
}

// FormatProductID renders a derived product identifier:
// <family>-<wavelength>um for continuum data and
// <family>-<restfreq>MHz-<bwmode>-<subsysnr> for heterodyne data.
func FormatProductID(family string, f *header.Fields) (string, error) {
	if f.Heterodyne() {
		if f.RestFreqHz == nil {
			return "", &IdentifierError{File: f.File, Reason: "heterodyne product lacks a rest frequency"}
		}
		if f.BWMode == "" {
			return "", &IdentifierError{File: f.File, Reason: "heterodyne product lacks a bandwidth mode"}
		}
		if f.SubsysNr == nil {
			return "", &IdentifierError{File: f.File, Reason: "heterodyne product lacks a subsystem number"}
		}
		return fmt.Sprintf("%s-%.0fMHz-%s-%d", family, *f.RestFreqHz/1e6, f.BWMode, *f.SubsysNr), nil
	}
	if f.FilterMicrons == nil {
		return "", &IdentifierError{File: f.File, Reason: "continuum product lacks a filter wavelength"}
	}
	return fmt.Sprintf("%s-%.0fum", family, *f.FilterMicrons), nil
}

// dataProductType infers the data shape from the product family and the
// primary array dimensionality.
func dataProductType(family string, f *header.Fields) caom.DataProductType {
	if strings.HasSuffix(family, "-cat") {
		return caom.DataProductCatalog
	}
	if family == "cube" {
		return caom.DataProductCube
	}
	if f.NumAxes != nil {
		switch *f.NumAxes {
		case 1:
			return caom.DataProductSpectrum
		case 2:
			return caom.DataProductImage
		case 3:
			return caom.DataProductCube
		}
	}
	if f.Heterodyne() {
		return caom.DataProductCube
	}
	return caom.DataProductImage
}
