package usecase_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storemaster/storemaster-api/internal/application/dto"
	"github.com/storemaster/storemaster-api/internal/application/usecase"
	"github.com/storemaster/storemaster-api/internal/domain"
	"github.com/storemaster/storemaster-api/internal/infrastructure/memory"
)

func newProductUC() (*usecase.ProductUseCase, *memory.DocumentStore) {
	st := memory.NewDocumentStore(0)
	return usecase.NewProductUseCase(st, nil, 0), st
}

func TestProductCreate(t *testing.T) {
	ctx := context.Background()
	uc, _ := newProductUC()

	out, err := uc.Create(ctx, &dto.CreateProductRequest{
		Name:      "  Martillo  ",
		Category:  "Herramientas",
		PriceBuy:  decimal.NewFromInt(8),
		PriceSell: decimal.NewFromInt(15),
		Stock:     3,
	})
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "Martillo", out.Name, "el nombre se guarda sin espacios alrededor")
	assert.True(t, out.LowStock, "stock 3 está bajo el umbral")
	assert.False(t, out.CreatedAt.IsZero())
}

func TestProductCreate_Validation(t *testing.T) {
	ctx := context.Background()
	uc, _ := newProductUC()

	cases := []struct {
		name string
		req  dto.CreateProductRequest
	}{
		{"nombre vacío", dto.CreateProductRequest{Category: "X"}},
		{"categoría vacía", dto.CreateProductRequest{Name: "X"}},
		{"precio negativo", dto.CreateProductRequest{Name: "X", Category: "Y", PriceSell: decimal.NewFromInt(-1)}},
		{"stock negativo", dto.CreateProductRequest{Name: "X", Category: "Y", Stock: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.Create(ctx, &tc.req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestProductUpdate_Partial(t *testing.T) {
	ctx := context.Background()
	uc, _ := newProductUC()

	created, err := uc.Create(ctx, &dto.CreateProductRequest{
		Name:      "Martillo",
		Category:  "Herramientas",
		PriceBuy:  decimal.NewFromInt(8),
		PriceSell: decimal.NewFromInt(15),
		Stock:     10,
	})
	require.NoError(t, err)

	newPrice := decimal.NewFromInt(18)
	out, err := uc.Update(ctx, created.ID, &dto.UpdateProductRequest{PriceSell: &newPrice})
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.True(t, out.PriceSell.Equal(newPrice))
	assert.Equal(t, "Martillo", out.Name, "los campos no enviados se conservan")
	assert.Equal(t, 10, out.Stock)
	assert.Equal(t, created.CreatedAt.Unix(), out.CreatedAt.Unix(), "created_at no se modifica")

	// Producto inexistente: nil sin error
	missing, err := uc.Update(ctx, "33333333-3333-3333-3333-333333333333", &dto.UpdateProductRequest{PriceSell: &newPrice})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProductDelete(t *testing.T) {
	ctx := context.Background()
	uc, _ := newProductUC()

	created, err := uc.Create(ctx, &dto.CreateProductRequest{
		Name: "Martillo", Category: "Herramientas",
		PriceBuy: decimal.NewFromInt(8), PriceSell: decimal.NewFromInt(15), Stock: 1,
	})
	require.NoError(t, err)

	require.NoError(t, uc.Delete(ctx, created.ID))

	got, err := uc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, uc.Delete(ctx, created.ID), domain.ErrProductNotFound)
}

func TestProductList_OrderSearchAndPagination(t *testing.T) {
	ctx := context.Background()
	uc, _ := newProductUC()

	for _, name := range []string{"Tuerca", "Arandela", "Clavo"} {
		_, err := uc.Create(ctx, &dto.CreateProductRequest{
			Name: name, Category: "Ferretería",
			PriceBuy: decimal.NewFromInt(1), PriceSell: decimal.NewFromInt(2), Stock: 10,
		})
		require.NoError(t, err)
	}

	// Ordenado por nombre ascendente
	out, err := uc.List(ctx, "", dto.PageRequest{Limit: 20})
	require.NoError(t, err)
	require.Len(t, out.Items, 3)
	assert.Equal(t, "Arandela", out.Items[0].Name)
	assert.Equal(t, "Tuerca", out.Items[2].Name)
	assert.Equal(t, 3, out.Page.Total)

	// Búsqueda sin distinguir mayúsculas, por nombre o categoría
	out, err = uc.List(ctx, "TUER", dto.PageRequest{Limit: 20})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Tuerca", out.Items[0].Name)

	out, err = uc.List(ctx, "ferretería", dto.PageRequest{Limit: 20})
	require.NoError(t, err)
	assert.Len(t, out.Items, 3)

	// Paginación
	out, err = uc.List(ctx, "", dto.PageRequest{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Tuerca", out.Items[0].Name)
	assert.Equal(t, 3, out.Page.Total)
}
