package seed

var demoAuthors = []struct {
	name      string
	biography string
}{
	{"Christian Bobin", "French writer and poet known for short, luminous texts."},
	{"George R.R. Martin", "American fantasy author of A Song of Ice and Fire."},
	{"J.R.R. Tolkien", "British writer, poet and philologist, creator of Middle-earth."},
	{"Isaac Asimov", "American writer and biochemist, one of the masters of science fiction."},
	{"Frank Herbert", "American science fiction author best known for Dune."},
	{"Agatha Christie", "British writer of numerous detective novels."},
	{"Stephen King", "American author of horror, supernatural fiction and science fiction."},
	{"Edward Snowden", "American computer scientist and whistleblower, born in 1983."},
	{"George Orwell", "British novelist and journalist, author of 1984 and Animal Farm."},
	{"Rene Goscinny", "French writer, creator of Asterix and Lucky Luke with his artists."},
	{"Albert Uderzo", "French artist and writer, co-creator of Asterix with Rene Goscinny."},
}

// Parents precede their children.
var demoCategories = []struct {
	name   string
	parent string
}{
	{"Imaginaire", ""},
	{"Policier & Thriller", ""},
	{"Littérature", ""},
	{"Non-Fiction", ""},
	{"Fantasy", "Imaginaire"},
	{"Science-Fiction", "Imaginaire"},
	{"Horreur", "Imaginaire"},
	{"Dystopie", "Imaginaire"},
	{"Mystère", "Policier & Thriller"},
	{"Roman", "Littérature"},
	{"Biographie", "Non-Fiction"},
	{"Histoire", "Non-Fiction"},
	{"Bande Dessinée", "Imaginaire"},
}

const coverBase = "https://pictures.abebooks.com/"

var demoBooks = []demoBook{
	{"L'inespérée", []string{"Christian Bobin"}, []string{"Roman"}, "9782070394555", "7.20", 50, coverBase + "isbn/9782070394555-fr.jpg"},
	{"Une petite robe de fête", []string{"Christian Bobin"}, []string{"Roman"}, "9782070387243", "3.00", 15, coverBase + "isbn/9782070387243-fr.jpg"},
	{"Le Trône de fer, tome 1", []string{"George R.R. Martin"}, []string{"Fantasy"}, "9782290302866", "3.99", 0, coverBase + "isbn/9782290302866-fr.jpg"},
	{"Le Seigneur des anneaux", []string{"J.R.R. Tolkien"}, []string{"Fantasy"}, "9782070515790", "5.75", 120, coverBase + "isbn/9782070515790-fr.jpg"},
	{"Le Hobbit", []string{"J.R.R. Tolkien"}, []string{"Fantasy"}, "9782266341233", "16.12", 2, coverBase + "isbn/9782266341233-fr.jpg"},
	{"Fondation", []string{"Isaac Asimov"}, []string{"Science-Fiction"}, "9782070360536", "5.40", 100, coverBase + "inventory/md/md32307083483.jpg"},
	{"Dune", []string{"Frank Herbert"}, []string{"Science-Fiction"}, "9780441172719", "5.54", 90, coverBase + "isbn/9780441172719-fr.jpg"},
	{"Le Crime de l'Orient-Express", []string{"Agatha Christie"}, []string{"Mystère"}, "9780008268879", "7.50", 200, coverBase + "inventory/md/md31953931473.jpg"},
	{"Ça", []string{"Stephen King"}, []string{"Horreur"}, "9782253151340", "13.40", 70, coverBase + "isbn/9782253151340-fr.jpg"},
	{"1984", []string{"George Orwell"}, []string{"Dystopie", "Science-Fiction"}, "9780008322069", "8.50", 180, coverBase + "inventory/md/md32233285926.jpg"},
	{"Mémoires vives", []string{"Edward Snowden"}, []string{"Biographie"}, "9782757886076", "4.82", 4, coverBase + "isbn/9782757886076-fr.jpg"},
	{"Asterix Et Cleopatre", []string{"Rene Goscinny", "Albert Uderzo"}, []string{"Bande Dessinée"}, "9782012101388", "12.86", 41, coverBase + "isbn/9782012101388-fr.jpg"},
}

var demoUsers = []struct {
	username string
	first    string
	last     string
	admin    bool
}{
	{"user1", "user", "name", false},
	{"user2", "cegep", "Garneau", false},
	{"user3", "user", "name", false},
	{"admin", "user", "name", true},
}
