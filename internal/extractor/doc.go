// Package extractor discovers the source files of a project and turns them
// into elements. Every discovered, readable file contributes at least one
// element: when its parser fails or finds nothing, the whole file is indexed
// as a single module element with id "file_{path}".
package extractor
