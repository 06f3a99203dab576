// Package client is the Go SDK for the star notary HTTP API.
//
// Registering a star is a three-step flow. The wallet owner asks for a
// challenge, signs its message with the address's private key, and then
// spends the resulting authorization on one ledger entry:
//
//	c, err := client.New("http://localhost:8000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ch, _ := c.RequestValidation(ctx, address)
//	sig, _ := sigverify.SignMessage(key, ch.Message, true)
//	res, _ := c.ValidateSignature(ctx, address, sig)
//	if !res.RegisterStar {
//	    log.Fatal("signature rejected")
//	}
//	block, err := c.RegisterStar(ctx, address, client.Star{
//	    RA:    "16h 29m 1.0s",
//	    Dec:   "-26° 29' 24.9",
//	    Story: "Found star using https://www.google.com/sky/",
//	})
//
// Lookups need no authorization:
//
//	b, _ := c.Block(ctx, 1)
//	mine, _ := c.StarsByAddress(ctx, address)
//	same, _ := c.StarByHash(ctx, b.Hash)
//
// Errors from non-2xx responses are *APIError values and match ErrNotFound,
// ErrNotAuthorized or ErrBadRequest under errors.Is.
package client
