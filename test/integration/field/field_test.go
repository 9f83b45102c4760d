// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

//go:build integration

package field_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/customfields/customfields/internal/field"
	fieldpg "github.com/customfields/customfields/internal/field/postgres"
	"github.com/customfields/customfields/internal/fieldtype"
	"github.com/customfields/customfields/internal/finder/expr"
	"github.com/customfields/customfields/internal/validate"
	"github.com/customfields/customfields/pkg/errutil"
)

func filtersFrom(text string) []field.Filter {
	conds, err := expr.Parse(text)
	Expect(err).NotTo(HaveOccurred())
	filters := make([]field.Filter, 0, len(conds))
	for _, c := range conds {
		filters = append(filters, field.Filter{Field: c.Field, Operator: string(c.Operator), Value: c.Value})
	}
	return filters
}

func ref(entityType, id string) field.EntityRef {
	return field.EntityRef{Type: entityType, ID: id}
}

var _ = Describe("Field definitions", func() {
	BeforeEach(func() {
		env.reset()
	})

	Describe("backfill", func() {
		It("gives every existing Author the cast default across batches", func() {
			insertAuthors("a1", "a2", "a3")

			def, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
				Name:         "active",
				TypeID:       fieldtype.Boolean,
				EntityType:   "Author",
				DefaultValue: false,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(countRows(`SELECT count(*) FROM field_values WHERE field_id = $1`, def.ID.String())).To(Equal(3))
			for _, id := range []string{"a1", "a2", "a3"} {
				got, ok := valueOf(ref("Author", id), "active")
				Expect(ok).To(BeTrue())
				Expect(got).To(Equal(false))
			}
		})

		It("materializes the default for an Author saved afterwards", func() {
			insertAuthors("a1", "a2")
			_, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
				Name:         "active",
				TypeID:       fieldtype.Boolean,
				EntityType:   "Author",
				DefaultValue: false,
			})
			Expect(err).NotTo(HaveOccurred())

			a := &author{name: "Le Guin"}
			Expect(saveAuthor(a, "a3", nil)).To(Succeed())

			got, ok := valueOf(ref("Author", "a3"), "active")
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(false))
		})

		It("only backfills entities in the definition's scope", func() {
			_, err := env.pool.Exec(env.ctx,
				`INSERT INTO books (id, genre) VALUES (1, 'fantasy'), (2, 'horror'), (3, 'fantasy')`)
			Expect(err).NotTo(HaveOccurred())
			scope := "fantasy"

			def, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
				Name:         "tags",
				TypeID:       fieldtype.TextArray,
				EntityType:   "Book",
				Scope:        &scope,
				DefaultValue: []any{"unread"},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(countRows(`SELECT count(*) FROM field_values WHERE field_id = $1`, def.ID.String())).To(Equal(2))
			_, ok := valueOf(ref("Book", "2"), "tags")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("names", func() {
		It("rejects a second definition with the same name and scope", func() {
			in := field.CreateDefinitionInput{Name: "rating", TypeID: fieldtype.Integer, EntityType: "Author"}
			_, err := env.Service.CreateDefinition(env.ctx, in)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Service.CreateDefinition(env.ctx, in)
			verr, ok := field.AsValidationError(err)
			Expect(ok).To(BeTrue())
			Expect(verr.Codes(field.AttrName)).To(ContainElement(validate.CodeTaken))
		})

		It("rejects names outside lowercase letters, digits and underscores", func() {
			_, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
				Name: "Name!", TypeID: fieldtype.Integer, EntityType: "Author",
			})
			verr, ok := field.AsValidationError(err)
			Expect(ok).To(BeTrue())
			Expect(verr.On(field.AttrName)).NotTo(BeEmpty())
			Expect(countRows(`SELECT count(*) FROM field_definitions`)).To(BeZero())
		})
	})

	Describe("destroy", func() {
		It("removes the definition's values", func() {
			insertAuthors("a1", "a2")
			def, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
				Name: "nickname", TypeID: fieldtype.Text, EntityType: "Author", DefaultValue: "anon",
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(env.Service.DestroyDefinition(env.ctx, def.ID)).To(Succeed())
			Expect(countRows(`SELECT count(*) FROM field_values`)).To(BeZero())
		})

		It("removes an owner's values with the owner", func() {
			_, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
				Name: "nickname", TypeID: fieldtype.Text, EntityType: "Author",
			})
			Expect(err).NotTo(HaveOccurred())

			a := &author{name: "Butler"}
			Expect(saveAuthor(a, "a1", map[string]any{"nickname": "Octavia"})).To(Succeed())
			Expect(countRows(`SELECT count(*) FROM field_values WHERE entity_id = 'a1'`)).To(Equal(1))

			err = env.Binder.Destroy(env.ctx, a, func(ctx context.Context) error {
				_, err := fieldpg.Conn(ctx, env.pool).Exec(ctx, `DELETE FROM authors WHERE id = $1`, a.id)
				return err
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(countRows(`SELECT count(*) FROM field_values WHERE entity_id = 'a1'`)).To(BeZero())
			Expect(countRows(`SELECT count(*) FROM authors`)).To(BeZero())
		})
	})
})

var _ = Describe("Field values", func() {
	BeforeEach(func() {
		env.reset()
	})

	It("rejects an out-of-range integer and does not save the owner", func() {
		_, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
			Name:       "rating",
			TypeID:     fieldtype.Integer,
			EntityType: "Author",
			Options:    fieldtype.Options{fieldtype.OptMin: 0, fieldtype.OptMax: 10},
		})
		Expect(err).NotTo(HaveOccurred())

		a := &author{name: "Pratchett"}
		err = saveAuthor(a, "a1", map[string]any{"rating": 15})
		verr, ok := field.AsValidationError(err)
		Expect(ok).To(BeTrue())
		Expect(verr.Codes("rating")).To(ContainElement(validate.CodeLessThanOrEqual))
		Expect(countRows(`SELECT count(*) FROM authors`)).To(BeZero())
		Expect(countRows(`SELECT count(*) FROM field_values`)).To(BeZero())
	})

	It("persists exactly one value when two creations race", func() {
		def, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
			Name: "nickname", TypeID: fieldtype.Text, EntityType: "Author",
		})
		Expect(err).NotTo(HaveOccurred())

		const attempts = 2
		var (
			wg   sync.WaitGroup
			errs = make([]error, attempts)
		)
		for i := range attempts {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, errs[i] = env.Service.CreateValue(env.ctx, ref("Author", "a9"), def.ID, "racer")
			}()
		}
		wg.Wait()

		var failures []error
		for _, err := range errs {
			if err != nil {
				failures = append(failures, err)
			}
		}
		Expect(failures).To(HaveLen(1))
		verr, ok := field.AsValidationError(failures[0])
		Expect(ok).To(BeTrue())
		Expect(verr.Codes(field.AttrField)).To(ContainElement(validate.CodeTaken))
		Expect(countRows(`SELECT count(*) FROM field_values WHERE entity_id = 'a9'`)).To(Equal(1))
	})

	It("saves an Author whose stored value belongs to a rescoped definition", func() {
		insertAuthors("1")
		def, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
			Name: "realm", TypeID: fieldtype.Text, EntityType: "Author", DefaultValue: "earth",
		})
		Expect(err).NotTo(HaveOccurred())
		scope := "fantasy"
		_, err = env.Service.UpdateDefinition(env.ctx, def.ID, field.DefinitionPatch{Scope: &scope})
		Expect(err).NotTo(HaveOccurred())

		a := &author{id: "1", name: "Le Guin"}
		Expect(saveAuthor(a, "1", map[string]any{"realm": "mars"})).To(Succeed())
		Expect(a.values.ByField(def.ID).Dormant()).To(BeTrue())
		got, ok := valueOf(ref("Author", "1"), "realm")
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal("earth"))
	})

	It("does not rewrite a reloaded integer set to the same number", func() {
		insertAuthors("1")
		_, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
			Name: "rating", TypeID: fieldtype.Integer, EntityType: "Author", DefaultValue: 4,
		})
		Expect(err).NotTo(HaveOccurred())

		a := &author{id: "1", name: "Le Guin"}
		Expect(env.Binder.Prepare(env.ctx, a, map[string]any{"rating": 4})).To(Succeed())
		Expect(a.values.ByName("rating").Changed()).To(BeFalse())
	})

	It("updates an existing value in place through PutValue", func() {
		insertAuthors("a1")
		_, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
			Name: "rating", TypeID: fieldtype.Integer, EntityType: "Author", DefaultValue: 1,
		})
		Expect(err).NotTo(HaveOccurred())

		v, err := env.Service.PutValue(env.ctx, ref("Author", "a1"), nil, "rating", "7")
		Expect(err).NotTo(HaveOccurred())
		Expect(v.Get()).To(Equal(int64(7)))
		Expect(countRows(`SELECT count(*) FROM field_values`)).To(Equal(1))
	})
})

var _ = Describe("Finder", func() {
	BeforeEach(func() {
		env.reset()
		insertAuthors("a1", "a2", "a3", "a4")
	})

	It("selects integer ranges", func() {
		_, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
			Name: "rating", TypeID: fieldtype.Integer, EntityType: "Author",
		})
		Expect(err).NotTo(HaveOccurred())
		for id, rating := range map[string]int{"a1": 2, "a2": 5, "a3": 9} {
			_, err := env.Service.PutValue(env.ctx, ref("Author", id), nil, "rating", rating)
			Expect(err).NotTo(HaveOccurred())
		}

		ids, err := env.Service.FindEntityIDs(env.ctx, "Author", nil, filtersFrom("rating >= 5 and rating < 9")...)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"a2"}))

		ids, err = env.Service.FindEntityIDs(env.ctx, "Author", nil, filtersFrom("rating gt 1")...)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"a1", "a2", "a3"}))
	})

	It("treats null as distinct from true for is not", func() {
		_, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
			Name: "active", TypeID: fieldtype.Boolean, EntityType: "Author", DefaultValue: true,
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Service.PutValue(env.ctx, ref("Author", "a2"), nil, "active", false)
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Service.PutValue(env.ctx, ref("Author", "a3"), nil, "active", nil)
		Expect(err).NotTo(HaveOccurred())

		ids, err := env.Service.FindEntityIDs(env.ctx, "Author", nil, filtersFrom("active is not true")...)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"a2", "a3"}))
	})

	It("combines conditions on different fields", func() {
		_, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
			Name: "nickname", TypeID: fieldtype.Text, EntityType: "Author", DefaultValue: "",
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
			Name: "rating", TypeID: fieldtype.Integer, EntityType: "Author", DefaultValue: 3,
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Service.PutValue(env.ctx, ref("Author", "a1"), nil, "nickname", "The Bard")
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Service.PutValue(env.ctx, ref("Author", "a4"), nil, "nickname", "the_100%")
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Service.PutValue(env.ctx, ref("Author", "a4"), nil, "rating", 8)
		Expect(err).NotTo(HaveOccurred())

		ids, err := env.Service.FindEntityIDs(env.ctx, "Author", nil, filtersFrom(`nickname ^* "the" and rating > 5`)...)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"a4"}))

		ids, err = env.Service.FindEntityIDs(env.ctx, "Author", nil, filtersFrom(`nickname ~ "100%"`)...)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"a4"}))
	})

	It("matches array membership and element ranges", func() {
		_, err := env.pool.Exec(env.ctx, `INSERT INTO books (id, genre) VALUES (10, 'fantasy'), (11, 'fantasy')`)
		Expect(err).NotTo(HaveOccurred())
		scope := "fantasy"
		_, err = env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
			Name: "tags", TypeID: fieldtype.TextArray, EntityType: "Book", Scope: &scope,
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Service.PutValue(env.ctx, ref("Book", "10"), &scope, "tags", []any{"dragons", "maps"})
		Expect(err).NotTo(HaveOccurred())

		ids, err := env.Service.FindEntityIDs(env.ctx, "Book", &scope, filtersFrom(`tags |= "dragons"`)...)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"10"}))

		ids, err = env.Service.FindEntityIDs(env.ctx, "Book", &scope, filtersFrom(`tags size_eq 0`)...)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"11"}))
	})

	It("rejects > on an enum field without reading values", func() {
		_, err := env.Service.CreateDefinition(env.ctx, field.CreateDefinitionInput{
			Name:       "tier",
			TypeID:     fieldtype.Enum,
			EntityType: "Author",
			Options:    fieldtype.Options{fieldtype.OptAllowedValues: []any{"gold", "silver"}},
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Service.Where(env.ctx, "Author", nil, field.Filter{Field: "tier", Operator: ">", Value: "gold"})
		Expect(err).To(HaveOccurred())
		Expect(errutil.Code(err)).To(Equal("UNSUPPORTED_OPERATOR"))
		Expect(err.Error()).To(ContainSubstring(`operator ">"`))
		Expect(err.Error()).To(ContainSubstring(`field type "enum"`))
	})

	It("reports unknown fields", func() {
		_, err := env.Service.FindEntityIDs(env.ctx, "Author", nil, field.Filter{Field: "missing", Operator: "=", Value: 1})
		Expect(errors.Is(err, field.ErrNotFound)).To(BeTrue())
		Expect(errutil.Code(err)).To(Equal("FIELD_NOT_FOUND"))
	})
})
