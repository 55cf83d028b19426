// Package acquire resolves a host version descriptor to an installed host
// executable.
//
// A version manifest lists the known releases with their download URL,
// SHA-256 digest and archive format. Installed releases live in a cache
// directory, one subdirectory per version:
//
//	<cache>/<version>/            unpacked release tree (the host home)
//	<cache>/<version>/.verified   digest of the archive it was unpacked from
//
// A release is only ever visible under its final name after it was fully
// downloaded, verified and unpacked: installation happens in a staging
// directory that is renamed into place.
package acquire
