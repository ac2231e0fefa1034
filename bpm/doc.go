// Package bpm is a typed client for the process REST API of a BPM server.
//
// A Client authenticates with the OAuth2 password grant, keeps the issued bearer
// token in a tokenstore.TokenStore and sends every API call through Do, which
// attaches the token, negotiates the response content type and normalizes all
// failures into *Error.
//
// # Getting started
//
//	client, err := bpm.New(bpm.Config{
//		Name:    "app",
//		BaseURL: "http://localhost:8080",
//		APIRoot: "/rest/bpm/process",
//	})
//	if err != nil {
//		return err
//	}
//	if _, err := client.Authenticate(ctx, "admin", "admin"); err != nil {
//		return err
//	}
//	defs, err := client.ListProcessDefinitions(ctx, &bpm.ListProcessDefinitionsRequest{Key: bpm.Ptr("order")})
//
// # Sharing tokens
//
// Tokens are stored under "<Name>_jmixBpmAccessToken", so several clients can share one
// store. The token is read from the store on every request; rotating it externally
// takes effect on the next call.
package bpm
