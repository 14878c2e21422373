package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/moodcue/moodcue/internal/models"
)

type seedEntry struct {
	title    string
	year     string
	director string
	rating   float64
	tags     []string
}

type moodBucket struct {
	mood    string
	entries []seedEntry
}

// seedCatalog is the built-in mood catalog the service starts from before any
// external data arrives. Bucket and entry order are fixed so seed IDs stay
// stable across restarts.
var seedCatalog = []moodBucket{
	{"搞笑", []seedEntry{
		{"夏洛特烦恼", "2015", "闫非", 8.2, []string{"穿越", "校园", "爱情"}},
		{"西虹市首富", "2018", "闫非", 7.8, []string{"金钱", "梦想", "喜剧"}},
		{"羞羞的铁拳", "2017", "宋阳", 7.5, []string{"性别互换", "拳击", "爱情"}},
		{"疯狂的石头", "2006", "宁浩", 8.5, []string{"黑色幽默", "多线叙事"}},
		{"泰囧", "2012", "徐峥", 7.3, []string{"公路", "冒险", "友情"}},
	}},
	{"治愈", []seedEntry{
		{"小森林", "2018", "李廷香", 8.0, []string{"田园", "美食", "成长"}},
		{"菊次郎的夏天", "1999", "北野武", 8.7, []string{"童年", "友情", "温暖"}},
		{"海蒂和爷爷", "2015", "阿兰·葛斯彭纳", 9.2, []string{"亲情", "自然", "童真"}},
		{"放牛班的春天", "2004", "克里斯托夫·巴拉蒂", 9.3, []string{"音乐", "教育", "希望"}},
		{"龙猫", "1988", "宫崎骏", 9.2, []string{"动画", "童话", "想象力"}},
	}},
	{"热血", []seedEntry{
		{"灌篮高手", "1995", "西泽信孝", 9.6, []string{"篮球", "青春", "梦想"}},
		{"摔跤吧！爸爸", "2016", "尼特什·提瓦瑞", 9.0, []string{"体育", "父女", "励志"}},
		{"烈火英雄", "2019", "陈国辉", 7.8, []string{"消防", "英雄", "牺牲"}},
		{"中国女排", "2020", "陈可辛", 7.3, []string{"排球", "团队", "拼搏"}},
		{"少年的你", "2019", "曾国祥", 8.3, []string{"校园霸凌", "成长", "保护"}},
	}},
	{"浪漫", []seedEntry{
		{"你的名字", "2016", "新海诚", 8.4, []string{"穿越", "命运", "初恋"}},
		{"怦然心动", "2010", "罗伯·莱纳", 9.0, []string{"青春", "初恋", "成长"}},
		{"泰坦尼克号", "1997", "詹姆斯·卡梅隆", 9.4, []string{"史诗", "悲剧", "经典"}},
		{"我和我的家乡", "2020", "宁浩", 7.8, []string{"亲情", "思乡", "温情"}},
		{"比悲伤更悲伤的故事", "2018", "林孝谦", 7.5, []string{"纯爱", "疾病", "牺牲"}},
	}},
	{"悲伤", []seedEntry{
		{"忠犬八公的故事", "2009", "拉斯·霍尔斯道姆", 9.4, []string{"动物", "忠诚", "感动"}},
		{"遗愿清单", "2007", "罗伯·莱纳", 8.7, []string{"生命", "友情", "死亡"}},
		{"素媛", "2013", "李俊益", 9.2, []string{"儿童", "创伤", "希望"}},
		{"入殓师", "2008", "泷田洋二郎", 8.8, []string{"生死", "职业", "尊严"}},
		{"重庆森林", "1994", "王家卫", 8.7, []string{"孤独", "都市", "错过"}},
	}},
}

// Movies returns the seed catalog as records with stable local_N IDs.
func Movies() []*models.MovieRecord {
	var out []*models.MovieRecord
	id := 1
	for _, bucket := range seedCatalog {
		for _, e := range bucket.entries {
			out = append(out, &models.MovieRecord{
				ID:       fmt.Sprintf("local_%d", id),
				Title:    e.title,
				Director: e.director,
				Year:     e.year,
				Rating:   e.rating,
				Genres:   append([]string(nil), e.tags...),
				MoodTag:  bucket.mood,
			})
			id++
		}
	}
	return out
}

// Store is the persistence surface seeding needs.
type Store interface {
	CountMovies(ctx context.Context) (int64, error)
	BatchInsertMovies(ctx context.Context, movies []*models.MovieRecord) error
}

// Embedder turns movie text into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Load seeds the store with the built-in catalog. A non-empty store is left
// untouched, so seeding is safe to run on every startup.
func Load(ctx context.Context, store Store, embedder Embedder, log zerolog.Logger) error {
	n, err := store.CountMovies(ctx)
	if err != nil {
		return fmt.Errorf("failed to check catalog size: %w", err)
	}
	if n > 0 {
		log.Debug().Int64("movies", n).Msg("catalog already populated, skipping seed")
		return nil
	}

	movies := Movies()
	texts := make([]string, len(movies))
	for i, m := range movies {
		texts[i] = models.BuildMovieText(*m)
	}

	vecs, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed seed catalog: %w", err)
	}
	for i := range movies {
		movies[i].Embedding = vecs[i]
	}

	if err := store.BatchInsertMovies(ctx, movies); err != nil {
		return fmt.Errorf("failed to store seed catalog: %w", err)
	}

	log.Info().Int("movies", len(movies)).Msg("seeded movie catalog")
	return nil
}
