package orm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/strataorm/strata/pkg/orm"
	"github.com/strataorm/strata/pkg/schema"
)

func defineModel(t *testing.T, conn *orm.Connection, name string, opts ...orm.DefineOption) *orm.Model {
	t.Helper()
	m, err := conn.Define(name, []schema.Property{
		{Name: "name", Type: schema.TypeText, Required: true},
	}, opts...)
	if err != nil {
		t.Fatalf("define %s: %v", name, err)
	}
	return m
}

func TestHasOne(t *testing.T) {
	conn, _ := testConn(t)
	person := defineModel(t, conn, "person")
	pet := defineModel(t, conn, "pet")
	if err := pet.HasOne("owner", person); err != nil {
		t.Fatalf("hasOne: %v", err)
	}
	createSchema(t, conn)
	ctx := context.Background()

	ada := mustCreate(t, person, map[string]any{"name": "ada"})
	rex := mustCreate(t, pet, map[string]any{"name": "rex"})

	// Unset foreign key resolves to nothing, not an error.
	owner, err := rex.Related(ctx, "owner")
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if owner != nil {
		t.Fatalf("expected no owner, got %v", owner)
	}

	if err := rex.SetRelated(ctx, "owner", ada); err != nil {
		t.Fatalf("set related: %v", err)
	}
	owner, err = rex.Related(ctx, "owner")
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if owner != ada {
		t.Fatal("expected the identical cached owner instance")
	}

	// The synthesized foreign key is a real property.
	if rex.MustGet("owner_id") != ada.ID() {
		t.Fatalf("foreign key not written: %v", rex.MustGet("owner_id"))
	}

	// Clearing the association nils the foreign key.
	if err := rex.SetRelated(ctx, "owner", nil); err != nil {
		t.Fatalf("clear related: %v", err)
	}
	owner, err = rex.Related(ctx, "owner")
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if owner != nil {
		t.Fatal("expected cleared association")
	}
}

func TestHasOneRejectsUnsavedTarget(t *testing.T) {
	conn, _ := testConn(t)
	person := defineModel(t, conn, "person")
	pet := defineModel(t, conn, "pet")
	if err := pet.HasOne("owner", person); err != nil {
		t.Fatalf("hasOne: %v", err)
	}
	createSchema(t, conn)
	ctx := context.Background()

	rex := mustCreate(t, pet, map[string]any{"name": "rex"})
	ghost := person.New(map[string]any{"name": "ghost"})

	if err := rex.SetRelated(ctx, "owner", ghost); !errors.Is(err, orm.ErrNotPersisted) {
		t.Fatalf("expected ErrNotPersisted, got %v", err)
	}
}

func TestHasMany(t *testing.T) {
	conn, _ := testConn(t)
	person := defineModel(t, conn, "person")
	pet := defineModel(t, conn, "pet")
	if err := person.HasMany("pets", pet); err != nil {
		t.Fatalf("hasMany: %v", err)
	}
	createSchema(t, conn)
	ctx := context.Background()

	ada := mustCreate(t, person, map[string]any{"name": "ada"})
	rex := mustCreate(t, pet, map[string]any{"name": "rex"})
	ace := mustCreate(t, pet, map[string]any{"name": "ace"})

	if err := ada.AddRelated(ctx, "pets", rex, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := ada.AddRelated(ctx, "pets", ace, nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	pets, err := ada.RelatedAll(ctx, "pets")
	if err != nil {
		t.Fatalf("related all: %v", err)
	}
	if len(pets) != 2 {
		t.Fatalf("expected 2 pets, got %d", len(pets))
	}

	has, err := ada.HasRelated(ctx, "pets", rex)
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !has {
		t.Fatal("expected edge to exist")
	}

	if err := ada.RemoveRelated(ctx, "pets", rex); err != nil {
		t.Fatalf("remove: %v", err)
	}
	pets, err = ada.RelatedAll(ctx, "pets")
	if err != nil {
		t.Fatalf("related all: %v", err)
	}
	if len(pets) != 1 || pets[0] != ace {
		t.Fatalf("expected only ace to remain, got %v", pets)
	}
	has, err = ada.HasRelated(ctx, "pets", rex)
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if has {
		t.Fatal("expected edge to be gone")
	}
}

func TestHasManyExtraColumns(t *testing.T) {
	conn, _ := testConn(t)
	team := defineModel(t, conn, "team")
	person := defineModel(t, conn, "person")
	err := team.HasMany("members", person,
		orm.WithExtraColumns(schema.Property{Name: "role", Type: schema.TypeText}))
	if err != nil {
		t.Fatalf("hasMany: %v", err)
	}
	createSchema(t, conn)
	ctx := context.Background()

	crew := mustCreate(t, team, map[string]any{"name": "crew"})
	ada := mustCreate(t, person, map[string]any{"name": "ada"})

	if err := crew.AddRelated(ctx, "members", ada, map[string]any{"role": "captain"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	members, err := crew.RelatedAll(ctx, "members")
	if err != nil {
		t.Fatalf("related all: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
	if members[0].Extra("role") != "captain" {
		t.Fatalf("extra column not delivered: %v", members[0].Extra("role"))
	}
}

func TestSymmetricAssociation(t *testing.T) {
	conn, _ := testConn(t)
	person := defineModel(t, conn, "person")
	if err := person.HasMany("friends", person, orm.WithReverse("friendOf")); err != nil {
		t.Fatalf("hasMany: %v", err)
	}
	createSchema(t, conn)
	ctx := context.Background()

	ada := mustCreate(t, person, map[string]any{"name": "ada"})
	mary := mustCreate(t, person, map[string]any{"name": "mary"})

	if err := ada.AddRelated(ctx, "friends", mary, nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	// The edge is visible from both halves of the pair.
	friends, err := ada.RelatedAll(ctx, "friends")
	if err != nil {
		t.Fatalf("related all: %v", err)
	}
	if len(friends) != 1 || friends[0] != mary {
		t.Fatalf("forward accessor mismatch: %v", friends)
	}

	reverse, err := mary.RelatedAll(ctx, "friendOf")
	if err != nil {
		t.Fatalf("reverse related all: %v", err)
	}
	if len(reverse) != 1 || reverse[0] != ada {
		t.Fatalf("reverse accessor mismatch: %v", reverse)
	}

	has, err := mary.HasRelated(ctx, "friendOf", ada)
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !has {
		t.Fatal("expected the edge through the reverse accessor")
	}

	// The pair is directional: no edge from mary's forward side.
	forward, err := mary.RelatedAll(ctx, "friends")
	if err != nil {
		t.Fatalf("related all: %v", err)
	}
	if len(forward) != 0 {
		t.Fatalf("unexpected forward edge: %v", forward)
	}
}

func TestAssociationKindMismatch(t *testing.T) {
	conn, _ := testConn(t)
	person := defineModel(t, conn, "person")
	pet := defineModel(t, conn, "pet")
	if err := person.HasMany("pets", pet); err != nil {
		t.Fatalf("hasMany: %v", err)
	}
	createSchema(t, conn)
	ctx := context.Background()

	ada := mustCreate(t, person, map[string]any{"name": "ada"})

	if _, err := ada.Related(ctx, "pets"); !errors.Is(err, orm.ErrWrongAssociationKind) {
		t.Fatalf("expected kind mismatch, got %v", err)
	}
	if _, err := ada.RelatedAll(ctx, "nope"); !errors.Is(err, orm.ErrNoAssociation) {
		t.Fatalf("expected ErrNoAssociation, got %v", err)
	}
}

func TestAutoFetchHopLimit(t *testing.T) {
	conn, _ := testConn(t)
	country := defineModel(t, conn, "country", orm.WithAutoFetch(1))
	city := defineModel(t, conn, "city", orm.WithAutoFetch(1))
	street := defineModel(t, conn, "street", orm.WithAutoFetch(1))
	if err := street.HasOne("city", city); err != nil {
		t.Fatalf("hasOne: %v", err)
	}
	if err := city.HasOne("country", country); err != nil {
		t.Fatalf("hasOne: %v", err)
	}
	createSchema(t, conn)
	ctx := context.Background()

	uk := mustCreate(t, country, map[string]any{"name": "uk"})
	london := mustCreate(t, city, map[string]any{"name": "london"})
	baker := mustCreate(t, street, map[string]any{"name": "baker"})
	if err := london.SetRelated(ctx, "country", uk); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := london.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := baker.SetRelated(ctx, "city", london); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := baker.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	street.ClearCache()
	city.ClearCache()
	country.ClearCache()

	loaded, err := street.Get(ctx, baker.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// One hop: the city came along, the country did not.
	fetched, ok := loaded.Fetched("city")
	if !ok {
		t.Fatal("expected city to be auto-fetched")
	}
	fetchedCity := fetched.(*orm.Instance)
	if fetchedCity.MustGet("name") != "london" {
		t.Fatalf("wrong city: %v", fetchedCity.MustGet("name"))
	}
	if _, ok := fetchedCity.Fetched("country"); ok {
		t.Fatal("second hop must not be fetched with a budget of 1")
	}
}

func TestAutoFetchTwoHops(t *testing.T) {
	conn, _ := testConn(t)
	country := defineModel(t, conn, "country", orm.WithAutoFetch(2))
	city := defineModel(t, conn, "city", orm.WithAutoFetch(2))
	street := defineModel(t, conn, "street", orm.WithAutoFetch(2))
	if err := street.HasOne("city", city); err != nil {
		t.Fatalf("hasOne: %v", err)
	}
	if err := city.HasOne("country", country); err != nil {
		t.Fatalf("hasOne: %v", err)
	}
	createSchema(t, conn)
	ctx := context.Background()

	uk := mustCreate(t, country, map[string]any{"name": "uk"})
	london := mustCreate(t, city, map[string]any{"name": "london"})
	baker := mustCreate(t, street, map[string]any{"name": "baker"})
	if err := london.SetRelated(ctx, "country", uk); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := london.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := baker.SetRelated(ctx, "city", london); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := baker.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	street.ClearCache()
	city.ClearCache()
	country.ClearCache()

	loaded, err := street.Get(ctx, baker.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	fetched, ok := loaded.Fetched("city")
	if !ok {
		t.Fatal("expected city to be auto-fetched")
	}
	deeper, ok := fetched.(*orm.Instance).Fetched("country")
	if !ok {
		t.Fatal("expected country on the second hop")
	}
	if deeper.(*orm.Instance).MustGet("name") != "uk" {
		t.Fatal("wrong country")
	}
}

func TestAutoFetchManyCarriesExtraColumns(t *testing.T) {
	conn, _ := testConn(t)
	team := defineModel(t, conn, "team", orm.WithAutoFetch(1))
	person := defineModel(t, conn, "person")
	err := team.HasMany("members", person,
		orm.WithExtraColumns(schema.Property{Name: "role", Type: schema.TypeText}))
	if err != nil {
		t.Fatalf("hasMany: %v", err)
	}
	createSchema(t, conn)
	ctx := context.Background()

	crew := mustCreate(t, team, map[string]any{"name": "crew"})
	ada := mustCreate(t, person, map[string]any{"name": "ada"})
	if err := crew.AddRelated(ctx, "members", ada, map[string]any{"role": "captain"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	team.ClearCache()
	person.ClearCache()

	loaded, err := team.Get(ctx, crew.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	fetched, ok := loaded.Fetched("members")
	if !ok {
		t.Fatal("expected members to be auto-fetched")
	}
	members := fetched.([]*orm.Instance)
	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
	if members[0].Extra("role") != "captain" {
		t.Fatalf("edge extra column not delivered: %v", members[0].Extra("role"))
	}
}

func TestAutoFetchCycleIsNoOp(t *testing.T) {
	conn, _ := testConn(t)
	person := defineModel(t, conn, "person", orm.WithAutoFetch(5))
	if err := person.HasOne("mentor", person); err != nil {
		t.Fatalf("hasOne: %v", err)
	}
	createSchema(t, conn)
	ctx := context.Background()

	ada := mustCreate(t, person, map[string]any{"name": "ada"})
	mary := mustCreate(t, person, map[string]any{"name": "mary"})
	if err := ada.SetRelated(ctx, "mentor", mary); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := ada.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mary.SetRelated(ctx, "mentor", ada); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := mary.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	person.ClearCache()

	// A mutual pair with budget to spare terminates instead of looping.
	loaded, err := person.Get(ctx, ada.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	fetched, ok := loaded.Fetched("mentor")
	if !ok {
		t.Fatal("expected mentor to be auto-fetched")
	}
	if fetched.(*orm.Instance).MustGet("name") != "mary" {
		t.Fatal("wrong mentor")
	}
}
