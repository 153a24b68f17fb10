package derive

// DefaultItemID is returned for product names missing from the catalog.
const DefaultItemID = "3626086000000085305"

// CatalogEntry maps one product name to its external item id.
type CatalogEntry struct {
	Name   string
	ItemID string
}

// Catalog is an exact-match product name to item id table. When a name is
// listed twice the first entry wins.
type Catalog struct {
	entries []CatalogEntry
	index   map[string]string
}

// NewCatalog builds a catalog from ordered entries.
func NewCatalog(entries []CatalogEntry) *Catalog {
	c := &Catalog{entries: entries, index: make(map[string]string, len(entries))}
	for _, e := range entries {
		if _, dup := c.index[e.Name]; !dup {
			c.index[e.Name] = e.ItemID
		}
	}
	return c
}

// Lookup returns the item id for name and whether it was found. Unknown
// names get DefaultItemID.
func (c *Catalog) Lookup(name string) (string, bool) {
	if id, ok := c.index[name]; ok {
		return id, true
	}
	return DefaultItemID, false
}

// Entries returns the catalog in declaration order.
func (c *Catalog) Entries() []CatalogEntry {
	out := make([]CatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// DefaultCatalog returns the built-in visual catalog.
func DefaultCatalog() *Catalog { return defaultCatalog }

var defaultCatalog = NewCatalog([]CatalogEntry{ //nolint:gochecknoglobals
	{"100% Clustered Stacked Bar Chart (Pro)", "3626086000000085597"},
	{"100% Clustered Stacked Bar Chart (Standard)", "3626086000000085390"},
	{"100% Clustered Stacked Column Chart (Standard)", "3626086000000085399"},
	{"100% Clustered Stacked Column Chart (Pro)", "3626086000000085606"},
	{"100% Stacked Column Chart with Values instead of % (Standard)", "3626086000005775527"},
	{"Advanced Line Chart (Pro)", "3626086000000085714"},
	{"Advanced Line Chart (Standard)", "3626086000000085507"},
	{"Bubble Chart with Categorical Data (Pro)", "3626086000000085723"},
	{"Bubble Chart with Categorical Data (Standard)", "3626086000000085516"},
	{"Clustered Stacked Bar Chart (Pro)", "3626086000000085579"},
	{"Clustered Stacked Bar (Standard)", "3626086000000085372"},
	{"Clustered Stacked Bar Chart (Standard)", "3626086000000085372"},
	{"Clustered Stacked Column Chart (Pro)", "3626086000000085588"},
	{"Clustered Stacked Column (Standard)", "3626086000000085381"},
	{"Clustered Stacked Column Chart (Standard)", "3626086000000085381"},
	{"Dual Axis Scatter Chart (Pro)", "3626086000002636435"},
	{"Dual Axis Scatter Chart (Standard)", "3626086000002636444"},
	{"Dual X-axis Bar Chart (Pro)", "3626086000000085651"},
	{"Dual X-Axis Bar Chart (Standard)", "3626086000000085444"},
	{"Dual X-Axis Combo Chart (Pro)", "3626086000000085741"},
	{"Dual X-Axis Combo Chart (Standard)", "3626086000000085534"},
	{"Dual Y-Axis Column Chart (Pro)", "3626086000005775545"},
	{"Dual Y-Axis Column Chart (Pro)", "3626086000005775545"},
	{"Dual Y-Axis Column Chart (Standard)", "3626086000005775536"},
	{"Dual Y-Axis Combo Chart (Pro)", "3626086000000085750"},
	{"Dual Y-Axis Combo Chart", "3626086000000085543"},
	{"Dual Y-Axis Combo Chart (Standard)", "3626086000000085543"},
	{"3AC27F842CB619A799E46E73E5DBACD1", "3626086000000085305"},
	{"BAF37E8630B63AB3A7B1E3E91ADBC989", "3626086000000085305"},
	{"Editor Visual Custom (066A58E5FCB7578F8A046DB674742696)", "3626086000000085305"},
	{"Editor Visual Custom (3AC27F842CB619A799E46E73E5DBACD1)", "3626086000000085305"},
	{"Editor Visual Custom (705FA0C5DD0C4906B9E240E9432F26DA)", "3626086000000085305"},
	{"Editor Visual Custom (914A7D445244267B82D5A619AA757546)", "3626086000000085305"},
	{"Editor Visual Custom (92D85C43BD0F18E4B5B7D2841A9439CF)", "3626086000000085305"},
	{"Editor Visual Custom (bubblewithmaxline89E37174D7124DBAB46AC863300DDCA7)", "3626086000000085305"},
	{"Editor Visual Custom (jcorpcustomlipstickEFA5B32ECA94175485E151E54D72520F)", "3626086000000085305"},
	{"Editor Visual Custom (netpositionvoneED6F920EC7783D3399F7C73A542339CF)", "3626086000000085305"},
	{"fullclusteredstackedbarchartD48DA5D21CA91F2F870C298850131128.5.0.2.", "3626086000000085305"},
	{"Histogram", "3626086000000085305"},
	{"histogram069C0ECC45FD5F4CA2D790F607F16387", "3626086000000085305"},
	{"scatterrrAB4C4E44EFAE50338BE24FD70B630DB8", "3626086000000085305"},
	{"verticallinechartADF61B1833105189924A31F668585565", "3626086000000085305"},
	{"Histogram Chart (Pro)", "3626086000000085305"},
	{"Histogram Chart (Standard)", "3626086000005775554"},
	{"Horizontal Bullet Chart (Pro)", "3626086000005775563"},
	{"Horizontal Bullet Chart (Standard)", "3626086000000085633"},
	{"Likert Scale (Pro)", "3626086000000085426"},
	{"Likert Scale (Standard)", "3626086000000085687"},
	{"Lipstick Bar (Pro)", "3626086000000085480"},
	{"Lipstick Bar Chart (Pro)", "3626086000000085561"},
	{"Lipstick Bar Chart (Standard)", "3626086000000085561"},
	{"Lipstick Column (Pro)", "3626086000000085354"},
	{"Lipstick Column Chart (Pro)", "3626086000000085570"},
	{"Lipstick Column (Standard)", "3626086000000085570"},
	{"Lipstick Column Chart (Standard)", "3626086000000085363"},
	{"Lollipop Bar Chart (Pro)", "3626086000000085363"},
	{"Lollipop Bar Chart (Standard)", "3626086000000085669"},
	{"Lollipop Column Chart (Pro)", "3626086000000085462"},
	{"Lollipop Column Chart (Standard)", "3626086000000085678"},
	{"Merged Bar Chart (Pro)", "3626086000000085471"},
	{"Merged Bar Chart (Standard)", "3626086000000085696"},
	{"Side By Side Bar Chart (Standard)", "3626086000000085489"},
	{"Multiple Vertical Line Chart (Pro)", "3626086000000085489"},
	{"Multiple Vertical Line Chart (Standard)", "3626086000000085705"},
	{"Overlapping Bar Chart (Pro)", "3626086000000085498"},
	{"Overlapping Bar (Standard)", "3626086000000085615"},
	{"Overlapping Column Chart (Pro)", "3626086000000085408"},
	{"Overlapping Column (Standard)", "3626086000000085624"},
	{"Overlapping Column Chart (Standard)", "3626086000000085417"},
	{"Pie Chart with Full Legend Label (Pro)", "3626086000000085417"},
	{"Population Pyramid (Pro)", "3626086000000085732"},
	{"Population Pyramid (Standard)", "3626086000000085759"},
	{"Stacked Lipstick Bar Chart (Standard)", "3626086000000085552"},
	{"Certified Visuals Suite", "3626086000005775518"},
	{"Suite - Certified", "3626086000000085345"},
	{"Standard Visuals Suite", "3626086000000085345"},
	{"Suite - Standard", "3626086000000085336"},
	{"Vertical Bullet Chart (Pro)", "3626086000000085336"},
	{"Vertical Bullet Chart (Standard)", "3626086000000085642"},
	{"Vertical Bullet Chart (Standard), Horizontal Bullet Chart (Standard)", "3626086000000085435"},
	{"Advanced Donut and Pie Chart (Pro)", "3626086000000085435"},
	{"Advanced Donut and Pie Chart (Standard)", "3626086000006438332"},
	{"Bubble Chart with Only Borders (Standard)", "3626086000006438341"},
	{"Candlestick Chart (Standard)", "3626086000006438359"},
	{"Dumbbell Bar Chart (standard)", "3626086000006438377"},
	{"Dumbbell Column Chart (standard)", "3626086000006438395"},
	{"Multiple Axes Chart (Standard)", "3626086000006438413"},
	{"Stacked Column with Percentage and Total in Label (Standard)", "3626086000006438431"},
	{"Stacked Horizontal Funnel (Standard)", "3626086000006438449"},
	{"Stacked Lipstick Column Chart (Standard)", "3626086000006438467"},
	{"Stacked Vertical Funnel (Standard)", "3626086000006438485"},
})
