// Package storage provides the file backend that holds avatar SVG and PNG
// files. Files are addressed by storage keys such as
// "avatars/<digest>/octocat.png" and served under a public media URL.
package storage
