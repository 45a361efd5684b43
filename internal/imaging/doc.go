// Package imaging adapts third-party image libraries to avatar needs: SVG
// composition from configuration layers, SVG/PNG conversion, decoding of
// uploaded pictures and perceptual hashing used to detect duplicates.
package imaging
