/*
Package cash implements the token ledger: per-address wallets holding a
single token balance, and a controller to mint, burn and move funds
between them.

All other extensions consume this package through narrow interfaces they
declare themselves, so they can be tested against doubles.
*/
package cash
