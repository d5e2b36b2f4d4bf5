// Package mdr refactors floating-point scientific fields into progressive,
// error-bounded representations.
//
// A field is decomposed into a hierarchy of levels, each level's
// coefficients are encoded as bitplanes, and for every configured tier
// (error tolerance) the scheduler picks the cheapest additional planes that
// bring the estimated error below the tolerance. Each tier's planes are
// concatenated into one blob, erasure coded into data and parity fragments
// and written to the tier's storage; a query table records where every
// plane landed.
//
// Basic usage:
//
//	r, err := mdr.NewRefactorer(mdr.WithLogger(logger), mdr.WithPlanes(32))
//	if err != nil {
//	    return err
//	}
//	refactored, err := r.Refactor(ctx, field)
//	if err != nil {
//	    return err
//	}
//	layout, err := r.Plan(refactored, cfg)
//	if err != nil {
//	    return err
//	}
//	err = mdr.NewWriter(store, sink, logger).Write(ctx, refactored, layout, cfg)
//
// Reconstruction reads the metadata back and decodes any prefix of tiers:
//
//	field, err := mdr.NewReconstructor(store, sink, logger).Reconstruct(ctx, "/temperature", 1)
package mdr
