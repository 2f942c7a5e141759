// Package pkg provides the core libraries for Blockworld block visualization.
//
// # Overview
//
// Blockworld turns a Bitcoin block into a plot of land: every transaction
// becomes a square parcel whose side grows with the transaction's value,
// and the parcels are packed tightly onto a grid that a 3D viewer renders
// from MML markup. The pkg directory is organized into these areas:
//
//  1. [layout] - Size classification and the Mondrian packer
//  2. [mml] - Markup model, emitter, parser and normalizer
//  3. [anim] - Attribute animation scheduling
//  4. [scene] - Scene graph built from markup, media loading and framing
//  5. [pipeline] - Orchestration (fetch → pack → emit) with caching
//  6. [txdata] - Transaction value sources
//  7. [world] - Shared rooms where viewers see each other move
//
// # Architecture
//
// The typical data flow through Blockworld:
//
//	Transaction value API / dump file
//	         ↓
//	    [txdata] (values per transaction)
//	         ↓
//	    [layout/sizeclass] (value → parcel size, grid width)
//	         ↓
//	    [layout/mondrian] (parcels → grid squares)
//	         ↓
//	    [mml] (squares → markup)
//	         ↓
//	    [scene] (markup → animated scene graph)
//
// # Quick Start
//
//	runner := pipeline.NewRunner(cache.NewMemoryCache(), nil,
//	    txdata.FileSource{Path: "block-{height}.txt"}, logger)
//	res, err := runner.Execute(ctx, pipeline.Options{BlockHeight: 840000})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Markup)
//
// # Infrastructure
//
// Supporting packages shared by the CLI and the HTTP server:
//   - [cache]: file, memory, Redis and Badger backends with TTLs
//   - [errors]: coded errors that map to exit messages and HTTP statuses
//   - [httputil]: retrying HTTP client helpers
//   - [observability]: hooks around fetches, cache access and scene builds
//   - [seed]: deterministic randomness keyed by strings
//   - [buildinfo]: version metadata
package pkg
