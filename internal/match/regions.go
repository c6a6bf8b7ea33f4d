package match

// DefaultCatalog returns the French regions (post-2016 map) and their departments.
// Each call returns a fresh copy so callers may not mutate shared state.
func DefaultCatalog() Catalog {
	departments := make(map[string]string, len(frenchDepartments))
	for code, name := range frenchDepartments {
		departments[code] = name
	}
	regions := make([]RegionDefinition, 0, len(frenchRegions))
	for _, region := range frenchRegions {
		regions = append(regions, RegionDefinition{
			Key:         region.Key,
			Current:     region.Current,
			Former:      append([]string(nil), region.Former...),
			Departments: append([]string(nil), region.Departments...),
			Aliases:     append([]string(nil), region.Aliases...),
		})
	}
	return Catalog{Regions: regions, Departments: departments}
}

var frenchRegions = []RegionDefinition{
	{
		Key:         "auvergne-rhone-alpes",
		Current:     "Auvergne-Rhône-Alpes",
		Former:      []string{"Auvergne", "Rhône-Alpes"},
		Departments: []string{"01", "03", "07", "15", "26", "38", "42", "43", "63", "69", "73", "74"},
		Aliases:     []string{"ARA", "AURA"},
	},
	{
		Key:         "bourgogne-franche-comte",
		Current:     "Bourgogne-Franche-Comté",
		Former:      []string{"Bourgogne", "Franche-Comté"},
		Departments: []string{"21", "25", "39", "58", "70", "71", "89", "90"},
		Aliases:     []string{"BFC", "Burgundy"},
	},
	{
		Key:         "bretagne",
		Current:     "Bretagne",
		Departments: []string{"22", "29", "35", "56"},
		Aliases:     []string{"Brittany", "Breizh"},
	},
	{
		Key:         "centre-val-de-loire",
		Current:     "Centre-Val de Loire",
		Former:      []string{"Centre", "Région Centre"},
		Departments: []string{"18", "28", "36", "37", "41", "45"},
		Aliases:     []string{"CVL"},
	},
	{
		Key:         "corse",
		Current:     "Corse",
		Departments: []string{"2A", "2B"},
		Aliases:     []string{"Corsica", "Collectivité de Corse"},
	},
	{
		Key:         "grand-est",
		Current:     "Grand Est",
		Former:      []string{"Alsace", "Lorraine", "Champagne-Ardenne", "Alsace-Champagne-Ardenne-Lorraine"},
		Departments: []string{"08", "10", "51", "52", "54", "55", "57", "67", "68", "88"},
		Aliases:     []string{"ACAL", "Grand-Est"},
	},
	{
		Key:         "hauts-de-france",
		Current:     "Hauts-de-France",
		Former:      []string{"Nord-Pas-de-Calais", "Picardie", "Nord-Pas-de-Calais-Picardie"},
		Departments: []string{"02", "59", "60", "62", "80"},
		Aliases:     []string{"HDF", "NPDC"},
	},
	{
		Key:         "ile-de-france",
		Current:     "Île-de-France",
		Departments: []string{"75", "77", "78", "91", "92", "93", "94", "95"},
		Aliases:     []string{"IDF", "Région parisienne"},
	},
	{
		Key:         "normandie",
		Current:     "Normandie",
		Former:      []string{"Basse-Normandie", "Haute-Normandie"},
		Departments: []string{"14", "27", "50", "61", "76"},
		Aliases:     []string{"Normandy"},
	},
	{
		Key:         "nouvelle-aquitaine",
		Current:     "Nouvelle-Aquitaine",
		Former:      []string{"Aquitaine", "Limousin", "Poitou-Charentes", "Aquitaine-Limousin-Poitou-Charentes"},
		Departments: []string{"16", "17", "19", "23", "24", "33", "40", "47", "64", "79", "86", "87"},
		Aliases:     []string{"ALPC"},
	},
	{
		Key:         "occitanie",
		Current:     "Occitanie",
		Former:      []string{"Languedoc-Roussillon", "Midi-Pyrénées", "Languedoc-Roussillon-Midi-Pyrénées"},
		Departments: []string{"09", "11", "12", "30", "31", "32", "34", "46", "48", "65", "66", "81", "82"},
		Aliases:     []string{"LRMP", "Occitanie Pyrénées-Méditerranée"},
	},
	{
		Key:         "pays-de-la-loire",
		Current:     "Pays de la Loire",
		Departments: []string{"44", "49", "53", "72", "85"},
		Aliases:     []string{"PDL"},
	},
	{
		Key:         "provence-alpes-cote-d-azur",
		Current:     "Provence-Alpes-Côte d'Azur",
		Departments: []string{"04", "05", "06", "13", "83", "84"},
		Aliases:     []string{"PACA", "Région Sud", "Région Provence-Alpes-Côte d'Azur"},
	},
	{
		Key:         "guadeloupe",
		Current:     "Guadeloupe",
		Departments: []string{"971"},
	},
	{
		Key:         "martinique",
		Current:     "Martinique",
		Departments: []string{"972"},
	},
	{
		Key:         "guyane",
		Current:     "Guyane",
		Departments: []string{"973"},
		Aliases:     []string{"Guyane française", "French Guiana"},
	},
	{
		Key:         "la-reunion",
		Current:     "La Réunion",
		Departments: []string{"974"},
		Aliases:     []string{"Réunion", "Île de la Réunion"},
	},
	{
		Key:         "mayotte",
		Current:     "Mayotte",
		Departments: []string{"976"},
	},
}

var frenchDepartments = map[string]string{
	"01": "Ain", "02": "Aisne", "03": "Allier", "04": "Alpes-de-Haute-Provence",
	"05": "Hautes-Alpes", "06": "Alpes-Maritimes", "07": "Ardèche", "08": "Ardennes",
	"09": "Ariège", "10": "Aube", "11": "Aude", "12": "Aveyron",
	"13": "Bouches-du-Rhône", "14": "Calvados", "15": "Cantal", "16": "Charente",
	"17": "Charente-Maritime", "18": "Cher", "19": "Corrèze", "2A": "Corse-du-Sud",
	"2B": "Haute-Corse", "21": "Côte-d'Or", "22": "Côtes-d'Armor", "23": "Creuse",
	"24": "Dordogne", "25": "Doubs", "26": "Drôme", "27": "Eure",
	"28": "Eure-et-Loir", "29": "Finistère", "30": "Gard", "31": "Haute-Garonne",
	"32": "Gers", "33": "Gironde", "34": "Hérault", "35": "Ille-et-Vilaine",
	"36": "Indre", "37": "Indre-et-Loire", "38": "Isère", "39": "Jura",
	"40": "Landes", "41": "Loir-et-Cher", "42": "Loire", "43": "Haute-Loire",
	"44": "Loire-Atlantique", "45": "Loiret", "46": "Lot", "47": "Lot-et-Garonne",
	"48": "Lozère", "49": "Maine-et-Loire", "50": "Manche", "51": "Marne",
	"52": "Haute-Marne", "53": "Mayenne", "54": "Meurthe-et-Moselle", "55": "Meuse",
	"56": "Morbihan", "57": "Moselle", "58": "Nièvre", "59": "Nord",
	"60": "Oise", "61": "Orne", "62": "Pas-de-Calais", "63": "Puy-de-Dôme",
	"64": "Pyrénées-Atlantiques", "65": "Hautes-Pyrénées", "66": "Pyrénées-Orientales", "67": "Bas-Rhin",
	"68": "Haut-Rhin", "69": "Rhône", "70": "Haute-Saône", "71": "Saône-et-Loire",
	"72": "Sarthe", "73": "Savoie", "74": "Haute-Savoie", "75": "Paris",
	"76": "Seine-Maritime", "77": "Seine-et-Marne", "78": "Yvelines", "79": "Deux-Sèvres",
	"80": "Somme", "81": "Tarn", "82": "Tarn-et-Garonne", "83": "Var",
	"84": "Vaucluse", "85": "Vendée", "86": "Vienne", "87": "Haute-Vienne",
	"88": "Vosges", "89": "Yonne", "90": "Territoire de Belfort", "91": "Essonne",
	"92": "Hauts-de-Seine", "93": "Seine-Saint-Denis", "94": "Val-de-Marne", "95": "Val-d'Oise",
	"971": "Guadeloupe", "972": "Martinique", "973": "Guyane", "974": "La Réunion",
	"976": "Mayotte",
}
