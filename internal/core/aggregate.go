package core

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pure aggregation over entries and bills. Nothing here touches the store;
// callers load the rows they need inside their transaction.

// SumByProduct totals the live entries per product, ordered by product name.
func SumByProduct(entries []DemandEntry, productNames map[uuid.UUID]string) []ProductTotal {
	sums := make(map[uuid.UUID]decimal.Decimal)
	for _, e := range entries {
		if e.IsDeleted {
			continue
		}
		sums[e.ProductID] = sums[e.ProductID].Add(e.Quantity)
	}
	totals := make([]ProductTotal, 0, len(sums))
	for id, qty := range sums {
		totals = append(totals, ProductTotal{ProductID: id, ProductName: productNames[id], Quantity: qty})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].ProductName != totals[j].ProductName {
			return totals[i].ProductName < totals[j].ProductName
		}
		return totals[i].ProductID.String() < totals[j].ProductID.String()
	})
	return totals
}

// MergeTotals adds several total lists together, keeping name order.
func MergeTotals(lists ...[]ProductTotal) []ProductTotal {
	names := make(map[uuid.UUID]string)
	var flat []DemandEntry
	for _, l := range lists {
		for _, t := range l {
			names[t.ProductID] = t.ProductName
			flat = append(flat, DemandEntry{ProductID: t.ProductID, Quantity: t.Quantity})
		}
	}
	return SumByProduct(flat, names)
}

// ComputeStats counts distinct products and clients over live entries.
func ComputeStats(entries []DemandEntry) BatchStats {
	products := make(map[uuid.UUID]struct{})
	clients := make(map[uuid.UUID]struct{})
	stats := BatchStats{TotalQuantity: decimal.Zero}
	for _, e := range entries {
		if e.IsDeleted {
			continue
		}
		products[e.ProductID] = struct{}{}
		clients[e.ClientID] = struct{}{}
		stats.EntryCount++
		stats.TotalQuantity = stats.TotalQuantity.Add(e.Quantity)
	}
	stats.ProductCount = len(products)
	stats.ClientCount = len(clients)
	return stats
}

// Breakdown lists entries one per row with resolved names, in entry order.
func Breakdown(entries []DemandEntry, clientNames, productNames map[uuid.UUID]string) []ClientDemand {
	out := make([]ClientDemand, 0, len(entries))
	for _, e := range entries {
		out = append(out, ClientDemand{
			EntryID:     e.ID,
			ClientID:    e.ClientID,
			ClientName:  clientNames[e.ClientID],
			ProductID:   e.ProductID,
			ProductName: productNames[e.ProductID],
			Quantity:    e.Quantity,
			IsDeleted:   e.IsDeleted,
		})
	}
	return out
}

// CommittedQuantity is the amount of productID already on a bill.
func CommittedQuantity(items []BillItem, productID uuid.UUID) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if it.ProductID == productID {
			sum = sum.Add(it.Quantity)
		}
	}
	return sum
}

// quantityDelta is a per-product stock movement, applied in product ID order
// so two transactions lock stock rows in the same sequence.
type quantityDelta struct {
	ProductID uuid.UUID
	Quantity  decimal.Decimal
}

func sortedDeltas(m map[uuid.UUID]decimal.Decimal) []quantityDelta {
	out := make([]quantityDelta, 0, len(m))
	for id, q := range m {
		out = append(out, quantityDelta{ProductID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID.String() < out[j].ProductID.String() })
	return out
}

func itemQuantities(items []BillItem) map[uuid.UUID]decimal.Decimal {
	m := make(map[uuid.UUID]decimal.Decimal)
	for _, it := range items {
		m[it.ProductID] = m[it.ProductID].Add(it.Quantity)
	}
	return m
}

func totalsQuantities(totals []ProductTotal) map[uuid.UUID]decimal.Decimal {
	m := make(map[uuid.UUID]decimal.Decimal, len(totals))
	for _, t := range totals {
		m[t.ProductID] = m[t.ProductID].Add(t.Quantity)
	}
	return m
}

func productNameIndex(products []Product) map[uuid.UUID]string {
	m := make(map[uuid.UUID]string, len(products))
	for _, p := range products {
		m[p.ID] = p.Name
	}
	return m
}

func clientNameIndex(clients []Client) map[uuid.UUID]string {
	m := make(map[uuid.UUID]string, len(clients))
	for _, c := range clients {
		m[c.ID] = c.Name
	}
	return m
}
