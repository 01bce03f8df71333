// Package caom defines the archive record model produced by the ingestion
// engine: the Observation/Plane/Artifact/Part/Chunk hierarchy, the URI types
// that cross-reference records, and the coordinate-system summaries attached
// to chunks.
package caom

// Algorithm names an observation's grouping algorithm. Simple observations
// use AlgorithmExposure; composite observations carry the name of the
// grouping recipe and a non-empty member set.
type Algorithm string

// Grouping algorithms recognised by the ingestion engine.
const (
	// AlgorithmExposure marks a simple, single-exposure observation.
	AlgorithmExposure Algorithm = "exposure"
	// AlgorithmCustom marks a composite built from an explicit association.
	AlgorithmCustom Algorithm = "custom"
	// AlgorithmPublic marks a composite released as a public coadd.
	AlgorithmPublic Algorithm = "public"
)

// Composite reports whether the algorithm implies a member set.
func (a Algorithm) Composite() bool { return a != AlgorithmExposure && a != "" }

// Intent distinguishes science from calibration observations.
type Intent string

// Observation intents.
const (
	IntentScience     Intent = "science"
	IntentCalibration Intent = "calibration"
)

// CalibrationLevel encodes how processed a plane's data are.
type CalibrationLevel int

// Calibration levels, ordered from raw to derived product.
const (
	CalibrationPlanned     CalibrationLevel = -1
	CalibrationRaw         CalibrationLevel = 0
	CalibrationRawStandard CalibrationLevel = 1
	CalibrationCalibrated  CalibrationLevel = 2
	CalibrationProduct     CalibrationLevel = 3
)

// DataProductType classifies the shape of a plane's primary data.
type DataProductType string

// Data product types.
const (
	DataProductCube         DataProductType = "cube"
	DataProductImage        DataProductType = "image"
	DataProductSpectrum     DataProductType = "spectrum"
	DataProductCatalog      DataProductType = "catalog"
	DataProductMeasurements DataProductType = "measurements"
)

// ProductType classifies an artifact or part within a plane.
type ProductType string

// Artifact and part product types.
const (
	ProductScience     ProductType = "science"
	ProductCalibration ProductType = "calibration"
	ProductAuxiliary   ProductType = "auxiliary"
	ProductNoise       ProductType = "noise"
	ProductWeight      ProductType = "weight"
	ProductPreview     ProductType = "preview"
	ProductThumbnail   ProductType = "thumbnail"
	ProductInfo        ProductType = "info"
)

// ReleaseType states which release date governs an artifact's visibility.
type ReleaseType string

// Artifact release types.
const (
	ReleaseData ReleaseType = "data"
	ReleaseMeta ReleaseType = "meta"
)
