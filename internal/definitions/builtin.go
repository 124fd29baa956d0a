package definitions

import "pagewright/internal/domain"

func en(s string) domain.Localized { return domain.Localized{domain.DefaultLocale: s} }

func enOptions(values ...string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, en(v))
	}
	return out
}

func section(id, title string) domain.Block {
	return domain.Block{
		ID:          id,
		Type:        "SectionBlock",
		Props:       map[string]any{"level": 2, "title": title, "children": []any{}},
		IsTemplated: true,
	}
}

// Builtin returns the page types shipped with the service. Each call builds
// new values.
func Builtin() map[string]PageDefinition {
	return map[string]PageDefinition{
		"Document": {
			TypeLabelKey: "page.type.document",
			Properties:   map[string]PropertyGroup{},
		},
		"BlogPost": {
			TypeLabelKey: "page.type.blogPost",
			Properties: map[string]PropertyGroup{
				"meta": {
					Label:       en("Post Info"),
					DefaultOpen: true,
					Fields: map[string]FieldDefinition{
						"category": {
							Label:        en("Category"),
							Type:         FieldEnum,
							DefaultValue: en("Company News"),
							Options:      enOptions("Company News", "Development Log", "New Release"),
						},
						"readingTime": {Label: en("Reading Time (min)"), Type: FieldNumber, DefaultValue: 0},
					},
				},
			},
		},
		"PatchNote": {
			TypeLabelKey: "page.type.patchNote",
			Properties: map[string]PropertyGroup{
				"version": {
					Label:       en("Version Info"),
					DefaultOpen: true,
					Fields: map[string]FieldDefinition{
						"versionNumber": {Label: en("Version Number"), Type: FieldText, DefaultValue: "1.0.0"},
						"releaseDate":   {Label: en("Release Date"), Type: FieldText, DefaultValue: en("")},
					},
				},
			},
		},
		"Location": {
			TypeLabelKey: "page.type.location",
			Properties: map[string]PropertyGroup{
				"geography": {
					Label:       en("Geography"),
					DefaultOpen: true,
					Fields: map[string]FieldDefinition{
						"region":  {Label: en("Region"), Type: FieldText, DefaultValue: en("")},
						"climate": {Label: en("Climate"), Type: FieldText, DefaultValue: "Temperate"},
					},
				},
			},
		},
		"Species": {
			TypeLabelKey: "page.type.species",
			Properties: map[string]PropertyGroup{
				"biology": {
					Label:       en("Biology"),
					DefaultOpen: true,
					Fields: map[string]FieldDefinition{
						"lifespan": {Label: en("Average Lifespan"), Type: FieldText, DefaultValue: en("")},
						"homeworld": {
							Label:            en("Homeworld"),
							Type:             FieldPage,
							DefaultValue:     "",
							AllowedPageTypes: []string{"Location"},
						},
					},
				},
			},
		},
		"Character": {
			TypeLabelKey: "page.type.character",
			Properties: map[string]PropertyGroup{
				"identity": {
					Label:       en("Identity"),
					DefaultOpen: true,
					Fields: map[string]FieldDefinition{
						"name":    {Label: en("Name"), Type: FieldText, DefaultValue: en("")},
						"title":   {Label: en("Social Title"), Type: FieldText, DefaultValue: en("")},
						"aliases": {Label: en("Aliases"), Type: FieldTextArray, DefaultValue: []any{}},
					},
				},
				"characteristics": {
					Label:       en("Characteristics"),
					DefaultOpen: true,
					Fields: map[string]FieldDefinition{
						"species": {
							Label:            en("Species"),
							Type:             FieldPage,
							DefaultValue:     "",
							AllowedPageTypes: []string{"Species"},
						},
						"sex": {
							Label:        en("Sex"),
							Type:         FieldEnum,
							DefaultValue: en("Unknown"),
							Options:      enOptions("Male", "Female", "Other", "Unknown"),
						},
						"height": {Label: en("Height"), Type: FieldNumber, DefaultValue: 0},
						"weight": {Label: en("Weight"), Type: FieldNumber, DefaultValue: 0},
					},
				},
			},
			InitialBlocks: func() []domain.Block {
				return []domain.Block{
					section("appearance", "Appearance"),
					section("abilities", "Abilities"),
					section("history", "History"),
				}
			},
		},
		"Skill": {
			TypeLabelKey: "page.type.skill",
			Properties: map[string]PropertyGroup{
				"mechanics": {
					Label:       en("Mechanics"),
					DefaultOpen: true,
					Fields: map[string]FieldDefinition{
						"cooldown": {Label: en("Cooldown (sec)"), Type: FieldNumber, DefaultValue: 10},
						"manaCost": {Label: en("Mana Cost"), Type: FieldNumber, DefaultValue: 50},
						"damageType": {
							Label:        en("Damage Type"),
							Type:         FieldEnum,
							DefaultValue: en("Physical"),
							Options:      enOptions("Physical", "Magic", "True", "None"),
						},
					},
				},
			},
		},
		"Item": {
			TypeLabelKey: "page.type.item",
			Properties: map[string]PropertyGroup{
				"details": {
					Label:       en("Item Details"),
					DefaultOpen: true,
					Fields: map[string]FieldDefinition{
						"rarity": {
							Label:        en("Rarity"),
							Type:         FieldEnum,
							DefaultValue: en("Common"),
							Options:      enOptions("Common", "Uncommon", "Rare", "Epic", "Legendary"),
						},
						"price": {Label: en("Gold Price"), Type: FieldNumber, DefaultValue: 100},
						"isQuestItem": {
							Label:        en("Quest Item"),
							Type:         FieldEnum,
							DefaultValue: en("No"),
							Options:      enOptions("Yes", "No"),
						},
					},
				},
			},
		},
		"Card": {
			TypeLabelKey: "page.type.card",
			Properties:   map[string]PropertyGroup{},
		},
		"Hero": {
			TypeLabelKey: "page.type.hero",
			Properties: map[string]PropertyGroup{
				"combat": {
					Label:       en("Combat Stats"),
					DefaultOpen: true,
					Fields: map[string]FieldDefinition{
						"class": {
							Label:        en("Class"),
							Type:         FieldEnum,
							DefaultValue: en("Warrior"),
							Options:      enOptions("Warrior", "Mage", "Rogue", "Paladin"),
						},
						"difficulty": {Label: en("Difficulty"), Type: FieldNumber, DefaultValue: 1},
						"primaryRole": {
							Label:        en("Primary Role"),
							Type:         FieldEnum,
							DefaultValue: en("Tank"),
							Options:      enOptions("Tank", "DPS", "Support"),
						},
					},
				},
				"progression": {
					Label:       en("Progression"),
					DefaultOpen: true,
					Fields: map[string]FieldDefinition{
						"baseHp":   {Label: en("Base HP"), Type: FieldNumber, DefaultValue: 500},
						"baseMana": {Label: en("Base Mana"), Type: FieldNumber, DefaultValue: 100},
					},
				},
			},
			InitialBlocks: func() []domain.Block {
				return []domain.Block{
					section("playstyle", "Playstyle"),
					section("lore", "Background Lore"),
				}
			},
		},
	}
}
