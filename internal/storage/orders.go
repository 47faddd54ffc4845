package storage

import (
	"context"

	"tradesim/internal/apperr"
	"tradesim/pkg/types"
)

// SaveOrder upserts order's base_orders row, and its oco_orders row if it is
// one leg of an OCO pair.
func (s *Storage) SaveOrder(ctx context.Context, order types.Order) error {
	row := BaseOrderRow{
		ID:             order.ID,
		CreatedAt:      order.CreatedAt,
		OrderType:      string(order.Kind),
		Quantity:       order.Quantity,
		BaseAsset:      order.BaseAsset,
		TargetAsset:    order.TargetAsset,
		Direction:      string(order.Direction),
		ExecutionPrice: order.ExecutionPrice,
		StopPrice:      order.StopPrice,
		SignalPrice:    order.SignalPrice,
		BlockedAmount:  order.BlockedAmount,
		UserID:         order.UserID,
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return apperr.Internal("save order", err)
	}

	if order.IsOCOLeg() {
		ocoRow := OCOOrderRow{ID: order.ID, BoundedOrderID: order.BoundedOrderID}
		if err := s.db.WithContext(ctx).Save(&ocoRow).Error; err != nil {
			return apperr.Internal("save oco link", err)
		}
	}
	return nil
}

// DeleteOrder removes an order's rows (base and, if present, OCO link) on
// cancel or fill.
func (s *Storage) DeleteOrder(ctx context.Context, orderID string) error {
	if err := s.db.WithContext(ctx).Delete(&OCOOrderRow{}, "id = ?", orderID).Error; err != nil {
		return apperr.Internal("delete oco link", err)
	}
	if err := s.db.WithContext(ctx).Delete(&BaseOrderRow{}, "id = ?", orderID).Error; err != nil {
		return apperr.Internal("delete order", err)
	}
	return nil
}

// LoadOpenOrders returns every order persisted for userID, in placement
// order, with OCO links resolved.
func (s *Storage) LoadOpenOrders(ctx context.Context, userID string) ([]types.Order, error) {
	var rows []BaseOrderRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, apperr.Internal("load open orders", err)
	}

	var ocoRows []OCOOrderRow
	if err := s.db.WithContext(ctx).Find(&ocoRows).Error; err != nil {
		return nil, apperr.Internal("load oco links", err)
	}
	bounded := make(map[string]string, len(ocoRows))
	for _, oco := range ocoRows {
		bounded[oco.ID] = oco.BoundedOrderID
	}

	orders := make([]types.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, types.Order{
			ID:             row.ID,
			CreatedAt:      row.CreatedAt,
			UserID:         row.UserID,
			BaseAsset:      row.BaseAsset,
			TargetAsset:    row.TargetAsset,
			Direction:      types.Side(row.Direction),
			Quantity:       row.Quantity,
			BlockedAmount:  row.BlockedAmount,
			Kind:           types.OrderKind(row.OrderType),
			ExecutionPrice: row.ExecutionPrice,
			StopPrice:      row.StopPrice,
			SignalPrice:    row.SignalPrice,
			BoundedOrderID: bounded[row.ID],
		})
	}
	return orders, nil
}
