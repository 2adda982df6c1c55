// Package decoders holds the reference decoders wired by the commands.
//
// Passthrough and ObjectPassthrough copy source bytes into the artifact tree.
// Manifest writes a JSON description of the source file for extensions whose
// real decoder lives outside this repository.
package decoders
