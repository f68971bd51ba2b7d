// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package audit

// WorkloadRecord holds data for inserting a workload_details row.
type WorkloadRecord struct {
	Name        string
	Kind        string // "sysload" or "sideload"
	CatalogID   string
	UnitName    string
	ScratchPath string
}

// EventRecord holds data for inserting an events row.
type EventRecord struct {
	EventType   string
	Message     string
	ErrorDetail string
}
