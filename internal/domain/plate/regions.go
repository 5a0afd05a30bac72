package plate

// UnknownRegion is returned for any code missing from the region table.
const UnknownRegion = "Région inconnue"

var regions = map[string]string{
	"1":  "Rabat",
	"2":  "Salé-Médina",
	"3":  "Sala Al-Jadida",
	"4":  "Skhirat-Temara",
	"5":  "Khémisset",
	"6":  "Casablanca Anfa",
	"7":  "Casablanca Hay Mohammadi-Aïn Sebaâ",
	"8":  "Casablanca Hay Hassani",
	"9":  "Casablanca Benmsik",
	"10": "Casablanca Moulay Rachid",
	"11": "Casablanca-Al Fida Derb Sultan",
	"12": "Casablanca Mechouar",
	"13": "Casablanca Sidi Bernoussi-Zenata",
	"14": "Mohammedia",
	"15": "Fès jdid - dar dbibagh",
	"16": "Fès Medina",
	"17": "Zouagha - Moulay Yacoub",
	"18": "Sefrou",
	"19": "Boulmane",
	"20": "Meknès Menzah",
	"21": "Meknès Ismailia",
	"22": "El Hajeb",
	"23": "Ifrane",
	"24": "Khénifra",
	"25": "Errachidia",
	"26": "Marrakech-Menara",
	"27": "Marrakech-Medina",
	"28": "Marrakech-Sidi Youssef Ben-Ali",
	"29": "El-Haouz",
	"30": "Chichaoua",
	"31": "Kelâat Es-Sraghna",
	"32": "Essaouira",
	"33": "Agadir Ida-Outanane",
	"34": "Agadir - Inezgane - Ait Melloul",
	"35": "Chtouka Aït Baha",
	"36": "Taroudant",
	"37": "Tiznit",
	"38": "Ouarzazate",
	"39": "Zagora",
	"40": "Tangier - Asilah",
	"41": "Tanger Fahs-Bni Makada",
	"42": "Larache",
	"43": "Chefchaouen",
	"44": "Tétouan",
	"45": "Al-Hoceima",
	"46": "Taza",
	"47": "Taounate",
	"48": "Oujda",
	"49": "Berkane",
	"50": "Nador",
	"51": "Taourirt",
	"52": "Jerada",
	"53": "Figuig",
	"54": "Asfi",
	"55": "El Jadida",
	"56": "Settat",
	"57": "Khouribga",
	"58": "Benslimane",
	"59": "Kénitra",
	"60": "Sidi Kacem",
	"61": "Béni Mellal",
	"62": "Azilal",
	"63": "Smara",
	"64": "Guelmim",
	"65": "Tan-Tan",
	"66": "Tata",
	"67": "Assa-Zag",
	"68": "Laâyoune",
	"69": "Boujdour",
	"70": "Oued Ed-Dahab",
	"71": "Aousserd",
	"72": "Casablanca Ain-Chock",
	"73": "Casablanca Nouacer",
	"74": "Casablanca Mediouna",
	"75": "M'diq - Fnideq",
	"76": "Driouch",
	"77": "Guercif",
	"78": "Ouazzane",
	"79": "Sidi Slimane",
	"80": "Midelt",
	"81": "Berrechid",
	"82": "Sidi Bennour",
	"83": "Ben Guerir",
	"84": "Fquih Ben Salah",
	"85": "Youssoufia",
	"86": "Tinghir",
	"87": "Sidi Ifni",
	"88": "Tarfaya",
	"89": "Lagouira",
}

// RegionName maps a numeric region code to its administrative name.
func RegionName(code string) string {
	if name, ok := regions[code]; ok {
		return name
	}
	return UnknownRegion
}

// Regions returns a copy of the code to name table.
func Regions() map[string]string {
	out := make(map[string]string, len(regions))
	for code, name := range regions {
		out[code] = name
	}
	return out
}
