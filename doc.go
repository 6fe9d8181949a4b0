// Package iapkit is a client-side purchase-management layer for digital
// in-app goods.
//
// It tracks which products an account owns, requests product metadata from
// a storefront, drives the purchase and restore flows, and validates
// purchase receipts against a remote verification service with a bounded
// production-to-sandbox fallback.
//
// # Overview
//
// One Manager coordinates all state. The storefront SDK is an external
// collaborator expressed as the Storefront interface plus a typed event
// channel; the Manager's dispatch loop is its single consumer and keeps the
// durable owned set consistent under redelivered transactions.
//
// Basic usage:
//
//	mgr := iapkit.NewManager(storefront, flags,
//	    iapkit.WithLogger(logger),
//	    iapkit.WithOnPurchased(func(id iapkit.ProductID) { unlock(id) }),
//	)
//	mgr.AddProducts("pro_upgrade", "remove_ads")
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//
//	result, err := mgr.Load(ctx, true) // true: validate receipt remotely
//	products, err := mgr.RequestProducts(ctx)
//	err = mgr.Purchase("pro_upgrade")
//
// Ownership is granted only after the durable flag store has flushed, so a
// crash immediately after a grant cannot lose it. Receipt trust decisions
// are delegated to the remote verification service; see package receipt.
package iapkit
