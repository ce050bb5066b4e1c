package ingest

// Leaf is one terminal taxonomy category with its search terms, best first.
type Leaf struct {
	Key   string
	Terms []string
}

// DefaultTaxonomy is the built-in leaf table the batch driver walks. The
// marketplace taxonomy service owns the real tree; this static snapshot covers
// the catalog areas the pool curation team seeds first.
func DefaultTaxonomy() []Leaf {
	return []Leaf{
		{Key: "electronics.audio.earbuds", Terms: []string{
			"wireless earbuds", "tws earbuds bulk", "bluetooth earphones wholesale", "anc earbuds oem",
		}},
		{Key: "electronics.audio.speakers", Terms: []string{
			"portable bluetooth speaker", "mini speaker wholesale", "waterproof outdoor speaker",
		}},
		{Key: "electronics.wearables.smartwatch", Terms: []string{
			"smart watch bulk", "fitness tracker wholesale", "smartwatch round screen",
		}},
		{Key: "electronics.charging.powerbank", Terms: []string{
			"power bank 10000mah", "magnetic wireless power bank", "slim power bank wholesale",
		}},
		{Key: "home.kitchen.drinkware", Terms: []string{
			"stainless steel water bottle", "insulated tumbler bulk", "glass drinking bottle wholesale",
		}},
		{Key: "home.kitchen.storage", Terms: []string{
			"airtight food container set", "glass storage jar bulk", "bamboo spice rack",
		}},
		{Key: "home.lighting.led", Terms: []string{
			"led strip light 5050", "solar garden lamp", "rechargeable camping lantern",
		}},
		{Key: "home.textile.bedding", Terms: []string{
			"bamboo fiber bed sheet", "duvet cover set wholesale", "memory foam pillow bulk",
		}},
		{Key: "sports.outdoor.camping", Terms: []string{
			"ultralight camping tent", "folding camp chair bulk", "titanium camping cookware",
		}},
		{Key: "sports.fitness.equipment", Terms: []string{
			"resistance bands set", "adjustable dumbbell wholesale", "yoga mat tpe bulk",
		}},
		{Key: "beauty.tools.hair", Terms: []string{
			"ionic hair dryer wholesale", "hair straightener brush", "curling iron ceramic bulk",
		}},
		{Key: "pets.supplies.grooming", Terms: []string{
			"pet grooming kit wholesale", "dog nail grinder bulk", "self cleaning slicker brush",
		}},
	}
}
