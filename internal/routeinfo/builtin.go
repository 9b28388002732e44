package routeinfo

// builtinEntries covers the Pearl River Delta and Yangtze Delta pairs
// the assistant is most often asked about. Replaceable wholesale via
// the route_table config file.
var builtinEntries = []tableEntry{
	{
		A: "深圳", B: "珠海",
		Template: Template{
			Highways:     []string{"广深沿江高速(S3)", "虎门大桥", "广澳高速(G4W)", "港珠澳大桥"},
			TollStations: []string{"南沙收费站", "香洲收费站"},
			ServiceAreas: []string{"虎门服务区", "珠海服务区"},
			Attractions:  []string{"珠海渔女像", "情侣路", "圆明新园"},
			Foods:        []string{"斗门蚝", "金湾蟹", "珠海渔家菜"},
		},
	},
	{
		A: "广州", B: "珠海",
		Template: Template{
			Highways:     []string{"广州环城高速", "广州南沙港快速", "南沙大桥", "高栏港高速"},
			TollStations: []string{"南沙收费站", "平沙收费站"},
			ServiceAreas: []string{"中山服务区", "珠海服务区"},
			Attractions:  []string{"圆明新园", "长隆海洋王国", "日月贝"},
			Foods:        []string{"蚝烙", "冰烧海参", "猪肚鸡"},
		},
	},
	{
		A: "香港", B: "珠海",
		Template: Template{
			Highways:     []string{"深港西部通道", "广深沿江高速", "虎门大桥", "港珠澳大桥"},
			TollStations: []string{"香港收费站", "珠海收费站"},
			ServiceAreas: []string{"屯门服务区", "珠海服务区"},
			Attractions:  []string{"香港迪士尼", "维多利亚港", "珠海长隆海洋王国"},
			Foods:        []string{"港式茶餐厅", "珠海海鲜", "妈阁面"},
		},
	},
	{
		A: "上海", B: "杭州",
		Template: Template{
			Highways:     []string{"沪杭高速(G60)", "杭州绕城高速"},
			TollStations: []string{"松江收费站", "杭州收费站"},
			ServiceAreas: []string{"嘉兴服务区", "余杭服务区"},
			Attractions:  []string{"西湖", "灵隐寺", "西溪湿地"},
			Foods:        []string{"杭州小笼包", "西湖醋鱼", "东坡肉"},
		},
	},
	{
		A: "北京", B: "天津",
		Template: Template{
			Highways:     []string{"京津高速", "京津塘高速"},
			TollStations: []string{"武清收费站", "天津收费站"},
			ServiceAreas: []string{"武清服务区", "杨村服务区"},
			Attractions:  []string{"天津之眼", "意式风情区", "五大道"},
			Foods:        []string{"狗不理包子", "煎饼果子", "天津麻花"},
		},
	},
}
