package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leafshop/leafshop-backend/internal/warehouses"
	"github.com/leafshop/leafshop-backend/pkg/db/models"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
)

type stubInventoryService struct {
	warehouse       *models.Warehouse
	record          *models.InventoryRecord
	records         []models.InventoryRecord
	err             error
	warehouseInput  warehouses.CreateWarehouseInput
	inventoryInput  warehouses.CreateInventoryInput
	updateInput     warehouses.UpdateInventoryInput
	filter          warehouses.InventoryFilter
	adjustDelta     int
	adjustReason    enums.InventoryAdjustmentReason
	deletedID       uuid.UUID
	lowStockQueried bool
}

func (s *stubInventoryService) CreateWarehouse(ctx context.Context, input warehouses.CreateWarehouseInput) (*models.Warehouse, error) {
	s.warehouseInput = input
	return s.warehouse, s.err
}

func (s *stubInventoryService) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	if s.warehouse == nil {
		return nil, s.err
	}
	return []models.Warehouse{*s.warehouse}, s.err
}

func (s *stubInventoryService) CreateInventory(ctx context.Context, input warehouses.CreateInventoryInput) (*models.InventoryRecord, error) {
	s.inventoryInput = input
	return s.record, s.err
}

func (s *stubInventoryService) GetInventory(ctx context.Context, id uuid.UUID) (*models.InventoryRecord, error) {
	return s.record, s.err
}

func (s *stubInventoryService) ListInventory(ctx context.Context, filter warehouses.InventoryFilter) ([]models.InventoryRecord, error) {
	s.filter = filter
	return s.records, s.err
}

func (s *stubInventoryService) UpdateInventory(ctx context.Context, id uuid.UUID, input warehouses.UpdateInventoryInput) (*models.InventoryRecord, error) {
	s.updateInput = input
	return s.record, s.err
}

func (s *stubInventoryService) DeleteInventory(ctx context.Context, id uuid.UUID) error {
	s.deletedID = id
	return s.err
}

func (s *stubInventoryService) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int, reason enums.InventoryAdjustmentReason) (*models.InventoryRecord, error) {
	s.adjustDelta = delta
	s.adjustReason = reason
	return s.record, s.err
}

func (s *stubInventoryService) LowStockAlerts(ctx context.Context) ([]models.InventoryRecord, error) {
	s.lowStockQueried = true
	return s.records, s.err
}

func withInventoryID(req *http.Request, id string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("inventoryId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func sampleRecord() *models.InventoryRecord {
	return &models.InventoryRecord{
		ID:                uuid.New(),
		WarehouseID:       uuid.New(),
		ProductID:         uuid.New(),
		Quantity:          10,
		ReservedQuantity:  3,
		AvailableQuantity: 7,
		ReorderPoint:      2,
		Version:           4,
	}
}

func TestCreateWarehouseDefaultsActive(t *testing.T) {
	stub := &stubInventoryService{warehouse: &models.Warehouse{ID: uuid.New(), Code: "HCM", Name: "Ho Chi Minh", Active: true}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/warehouses", strings.NewReader(`{"code":"hcm","name":"Ho Chi Minh","priority":1}`))

	resp := httptest.NewRecorder()
	CreateWarehouse(stub, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if !stub.warehouseInput.Active || stub.warehouseInput.Priority != 1 {
		t.Fatalf("unexpected input %+v", stub.warehouseInput)
	}
	var envelope struct {
		Data warehouseResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Code != "HCM" {
		t.Fatalf("unexpected warehouse %+v", envelope.Data)
	}
}

func TestCreateWarehouseConflict(t *testing.T) {
	stub := &stubInventoryService{err: pkgerrors.New(pkgerrors.CodeConflict, "warehouse code already exists")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/warehouses", strings.NewReader(`{"code":"HCM","name":"Main"}`))

	resp := httptest.NewRecorder()
	CreateWarehouse(stub, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestListInventoryParsesFilter(t *testing.T) {
	record := sampleRecord()
	stub := &stubInventoryService{records: []models.InventoryRecord{*record}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/inventory?productId="+record.ProductID.String(), nil)

	resp := httptest.NewRecorder()
	ListInventory(stub, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if stub.filter.ProductID == nil || *stub.filter.ProductID != record.ProductID || stub.filter.WarehouseID != nil {
		t.Fatalf("unexpected filter %+v", stub.filter)
	}
	var envelope struct {
		Data []inventoryResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0].AvailableQuantity != 7 {
		t.Fatalf("unexpected list %+v", envelope.Data)
	}
}

func TestListInventoryRejectsBadFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/inventory?warehouseId=nope", nil)
	resp := httptest.NewRecorder()
	ListInventory(&stubInventoryService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCreateInventoryRejectsNegativeQuantity(t *testing.T) {
	body := `{"warehouseId":"` + uuid.NewString() + `","productId":"` + uuid.NewString() + `","quantity":-1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/inventory", strings.NewReader(body))

	resp := httptest.NewRecorder()
	stub := &stubInventoryService{record: sampleRecord()}
	CreateInventory(stub, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestUpdateInventoryPassesPatch(t *testing.T) {
	record := sampleRecord()
	stub := &stubInventoryService{record: record}
	req := withInventoryID(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"reorderPoint":5}`)), record.ID.String())

	resp := httptest.NewRecorder()
	UpdateInventory(stub, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if stub.updateInput.ReorderPoint == nil || *stub.updateInput.ReorderPoint != 5 || stub.updateInput.MaxStock != nil {
		t.Fatalf("unexpected patch %+v", stub.updateInput)
	}
}

func TestDeleteInventoryWithReservations(t *testing.T) {
	stub := &stubInventoryService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "inventory has outstanding reservations")}
	id := uuid.New()
	req := withInventoryID(httptest.NewRequest(http.MethodDelete, "/", nil), id.String())

	resp := httptest.NewRecorder()
	DeleteInventory(stub, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if stub.deletedID != id {
		t.Fatalf("expected delete for %s got %s", id, stub.deletedID)
	}
}

func TestAdjustInventoryParsesReason(t *testing.T) {
	record := sampleRecord()
	stub := &stubInventoryService{record: record}
	req := withInventoryID(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"delta":4,"reason":"restock"}`)), record.ID.String())

	resp := httptest.NewRecorder()
	AdjustInventory(stub, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if stub.adjustDelta != 4 || stub.adjustReason != enums.AdjustmentRestock {
		t.Fatalf("unexpected adjust delta=%d reason=%s", stub.adjustDelta, stub.adjustReason)
	}
}

func TestAdjustInventoryRejectsUnknownReason(t *testing.T) {
	req := withInventoryID(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"delta":4,"reason":"gift"}`)), uuid.NewString())

	resp := httptest.NewRecorder()
	AdjustInventory(&stubInventoryService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestLowStock(t *testing.T) {
	stub := &stubInventoryService{records: []models.InventoryRecord{*sampleRecord()}}
	resp := httptest.NewRecorder()
	LowStock(stub, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/admin/inventory/low-stock", nil))

	if resp.Code != http.StatusOK || !stub.lowStockQueried {
		t.Fatalf("expected low stock query, got status %d", resp.Code)
	}
}
