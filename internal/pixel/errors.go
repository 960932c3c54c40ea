package pixel

import "github.com/rotisserie/eris"

// Sentinel errors for the pipeline's failure taxonomy. Callers classify with
// eris.Is; command code maps any of these to a non-zero exit.
var (
	// ErrInputData indicates malformed or missing required fields, or an
	// empty geometry collection.
	ErrInputData = eris.New("pixel: invalid input data")

	// ErrCoordinateReference indicates a missing spatial reference or one
	// that requires an explicit reprojection the caller did not declare.
	ErrCoordinateReference = eris.New("pixel: coordinate reference missing or unsupported")

	// ErrConfiguration indicates a join rule or output declaration that
	// references unknown sources, fields, or kinds.
	ErrConfiguration = eris.New("pixel: invalid configuration")

	// ErrResourceExhaustion indicates the configured memory/size budget
	// would be exceeded; reported up front rather than degraded silently.
	ErrResourceExhaustion = eris.New("pixel: resource budget exceeded")

	// ErrBoundaryMismatch indicates a jurisdiction boundary that cannot be
	// reconciled with the grid's coordinate reference or extent.
	ErrBoundaryMismatch = eris.New("pixel: boundary incompatible with grid")
)
